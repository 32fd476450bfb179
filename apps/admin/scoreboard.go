package main

import (
	"context"
	"errors"
	"fmt"
)

var errNoLiveScoreboard = errors.New("the live scoreboard needs redis")

// followScoreboard prints the events of an activity as they are published, until ctx is done.
func (cli *commandLine) followScoreboard(ctx context.Context, activityID int) error {
	if cli.watch == nil {
		return errNoLiveScoreboard
	}
	if _, err := cli.catalogSvc.GetActivity(ctx, activityID); err != nil {
		return err
	}
	events, err := cli.watch(ctx, activityID)
	if err != nil {
		return err
	}
	for evt := range events {
		fmt.Fprintf(cli.out, "%s  %s\n", evt.CreatedAt.Local().Format("15:04:05"), evt.Message)
	}
	return nil
}
