package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temple-finder/pkg/geo"
	"github.com/diwise/temple-finder/pkg/types"
)

// Seed loads temples from a semicolon separated file with the columns
//
//	name;deity;category;address;locality;city;state;latitude;longitude;description;capacity;featured;tags
//
// Temples that already exist, by name, city and state, are left untouched.
func (r *templeRepository) Seed(ctx context.Context, reader io.Reader) error {
	logger := logging.GetFromContext(ctx)

	csvReader := csv.NewReader(reader)
	csvReader.Comma = ';'
	csvReader.FieldsPerRecord = 13

	rows, err := csvReader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read csv data: %w", err)
	}

	records, err := getRecordsFromRows(rows)
	if err != nil {
		return err
	}

	created := 0
	for _, temple := range records {
		exists, err := r.Exists(ctx, temple.Name, temple.City, temple.State)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if _, err = r.Create(ctx, temple); err != nil {
			return err
		}
		created++
	}

	logger.Info("seeded temples", "created", created, "total", len(records))

	return nil
}

func getRecordsFromRows(rows [][]string) ([]types.Temple, error) {
	temples := []types.Temple{}

	for i, row := range rows {
		if i == 0 {
			continue
		}

		temple, err := newTempleRecord(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		temples = append(temples, temple)
	}

	return temples, nil
}

func newTempleRecord(r []string) (types.Temple, error) {
	strToFloat := func(name, s string) (float64, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s %q", name, s)
		}
		return f, nil
	}

	lat, err := strToFloat("latitude", r[7])
	if err != nil {
		return types.Temple{}, err
	}
	lon, err := strToFloat("longitude", r[8])
	if err != nil {
		return types.Temple{}, err
	}

	location, err := geo.NewPoint(lat, lon)
	if err != nil {
		return types.Temple{}, err
	}

	capacity := 0
	if c := strings.TrimSpace(r[10]); c != "" {
		capacity, err = strconv.Atoi(c)
		if err != nil {
			return types.Temple{}, fmt.Errorf("failed to parse capacity %q", c)
		}
	}

	tags := []string{}
	for _, tag := range strings.Split(r[12], ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, strings.ToLower(tag))
		}
	}

	temple := types.Temple{
		Name:        strings.TrimSpace(r[0]),
		Deity:       strings.TrimSpace(r[1]),
		Category:    strings.TrimSpace(r[2]),
		Address:     strings.TrimSpace(r[3]),
		Locality:    strings.TrimSpace(r[4]),
		City:        strings.TrimSpace(r[5]),
		State:       strings.TrimSpace(r[6]),
		Location:    &location,
		Description: strings.TrimSpace(r[9]),
		Capacity:    capacity,
		Featured:    strings.EqualFold(strings.TrimSpace(r[11]), "true"),
		Tags:        tags,
		Verified:    true,
		Active:      true,
	}

	temple.ApplyDefaults()

	if err := temple.Validate(); err != nil {
		return types.Temple{}, err
	}

	return temple, nil
}
