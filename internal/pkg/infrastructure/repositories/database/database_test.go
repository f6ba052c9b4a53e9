package database

import (
	"context"
	"strings"
	"testing"

	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
	"github.com/matryer/is"
)

func setup(t *testing.T) (*is.I, context.Context, ConnectorFunc) {
	is := is.New(t)
	ctx := context.Background()
	return is, ctx, NewSQLiteConnector(ctx)
}

func testSetupTempleRepository(t *testing.T) (*is.I, context.Context, TempleRepository) {
	is, ctx, r, _, _ := testSetupRepositories(t)
	return is, ctx, r
}

func testSetupRepositories(t *testing.T) (*is.I, context.Context, TempleRepository, UserRepository, ReviewRepository) {
	is, ctx, conn := setup(t)

	temples, err := NewTempleRepository(conn)
	is.NoErr(err)
	users, err := NewUserRepository(conn)
	is.NoErr(err)
	reviews, err := NewReviewRepository(conn)
	is.NoErr(err)

	is.NoErr(temples.Seed(ctx, strings.NewReader(templesCsv)))

	return is, ctx, temples, users, reviews
}

func templeIDByName(t *testing.T, ctx context.Context, r TempleRepository, name string) string {
	collection, err := r.Query(ctx, WithSearch(name))
	if err != nil || len(collection.Data) == 0 {
		t.Fatalf("temple %s not found", name)
	}
	return collection.Data[0].ID
}

func TestConnectorIsShared(t *testing.T) {
	is, _, conn := setup(t)

	first, err := conn()
	is.NoErr(err)
	second, err := conn()
	is.NoErr(err)

	is.True(first == second)
	is.NoErr(Migrate(conn))
}

func TestSeparateConnectorsAreIsolated(t *testing.T) {
	is, ctx, _ := testSetupTempleRepository(t)

	other, err := NewTempleRepository(NewSQLiteConnector(ctx))
	is.NoErr(err)

	collection, err := other.Query(ctx)
	is.NoErr(err)
	is.Equal(collection.TotalCount, uint64(0))
}

func newTemple(name, city string, lat, lon float64) types.Temple {
	t := types.Temple{
		Name:     name,
		Deity:    "Lord Shiva",
		Address:  name + ", " + city,
		Locality: city,
		City:     city,
		State:    "Tamil Nadu",
		Location: &geo.Point{Latitude: lat, Longitude: lon},
		Active:   true,
	}
	t.ApplyDefaults()
	return t
}

const templesCsv string = `name;deity;category;address;locality;city;state;latitude;longitude;description;capacity;featured;tags
Kapaleeshwarar Temple;Lord Shiva;Hindu;Ponnambala Vadyar St, Mylapore;Mylapore;Chennai;Tamil Nadu;13.0339;80.2620;Dravidian temple dedicated to Shiva;5000;true;shiva,dravidian
Parthasarathy Temple;Lord Vishnu;Hindu;Triplicane High Rd, Triplicane;Triplicane;Chennai;Tamil Nadu;13.0575;80.2672;One of the 108 Divya Desams;3000;false;vishnu,divya desam
Kalikambal Temple;Goddess Kali;Hindu;Thambu Chetty St, George Town;George Town;Chennai;Tamil Nadu;13.0865;80.2889;Temple visited by Shivaji;;false;kali
Siddhivinayak Temple;Lord Ganesha;Hindu;SK Bole Marg, Prabhadevi;Prabhadevi;Mumbai;Maharashtra;19.0176;72.8562;Famous Ganesha temple;10000;true;ganesha
Gurudwara Bangla Sahib;Guru Har Krishan;Sikh;Ashoka Road, Connaught Place;Connaught Place;New Delhi;Delhi;28.6262;77.2090;Prominent Sikh gurdwara;8000;false;gurdwara`
