package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core/catalog"
)

// seedFile is the layout of a catalog file:
//
//	[[activities]]
//	group = "A1"
//	title = "Loops"
//	status = "ACTIVE"
//
//	  [[activities.exercises]]
//	  title = "FizzBuzz"
//	  max_points = 50
type seedFile struct {
	Activities []seedActivity `toml:"activities"`
}

type seedActivity struct {
	catalog.NewActivity
	Exercises []catalog.NewExercise `toml:"exercises"`
}

func parseSeedFile(data []byte) (seedFile, error) {
	var sf seedFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		return seedFile{}, errors.Wrap(err, "decoding seed file")
	}
	return sf, nil
}

// seed validates the whole file before creating anything.
func (cli *commandLine) seed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}
	sf, err := parseSeedFile(data)
	if err != nil {
		return err
	}

	for i := range sf.Activities {
		sa := &sf.Activities[i]
		if err = sa.NewActivity.Validate(cli.validate); err != nil {
			return errors.Wrapf(cli.describeErr(err), "activity #%d", i+1)
		}
		for j := range sa.Exercises {
			if err = sa.Exercises[j].Validate(cli.validate); err != nil {
				return errors.Wrapf(cli.describeErr(err), "activity #%d, exercise #%d", i+1, j+1)
			}
		}
	}

	var exCount int
	for _, sa := range sf.Activities {
		act, err := cli.catalogSvc.CreateActivity(ctx, sa.NewActivity, nil)
		if err != nil {
			return errors.Wrapf(err, "creating activity %q", sa.Title)
		}
		for _, ne := range sa.Exercises {
			if _, err = cli.catalogSvc.CreateExercise(ctx, act.ID, ne); err != nil {
				return errors.Wrapf(err, "creating exercise %q", ne.Title)
			}
			exCount++
		}
	}
	fmt.Fprintf(cli.out, "seeded %d activities and %d exercises\n", len(sf.Activities), exCount)
	return nil
}
