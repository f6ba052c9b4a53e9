package database

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

func TestQueryErrorsAreLoggedAndMasked(t *testing.T) {
	is, ctx, conn := setup(t)

	temples, err := NewTempleRepository(conn)
	is.NoErr(err)
	users, err := NewUserRepository(conn)
	is.NoErr(err)
	reviews, err := NewReviewRepository(conn)
	is.NoErr(err)

	buf := &bytes.Buffer{}
	ctx = logging.NewContextWithLogger(ctx, slog.New(slog.NewTextHandler(buf, nil)))

	db, err := conn()
	is.NoErr(err)
	sqlDB, err := db.DB()
	is.NoErr(err)
	is.NoErr(sqlDB.Close())

	_, err = temples.GetByID(ctx, "t1")
	is.True(errors.Is(err, ErrRepositoryError))

	_, err = users.GetByID(ctx, "u1")
	is.True(errors.Is(err, ErrRepositoryError))

	_, err = reviews.GetByID(ctx, "r1")
	is.True(errors.Is(err, ErrRepositoryError))

	is.Equal(strings.Count(buf.String(), "gorm error"), 3)
}
