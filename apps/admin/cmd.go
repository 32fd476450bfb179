package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/scoreboard"
	"github.com/trezcool/pensamiento/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// watchFunc streams the live scoreboard of an activity.
type watchFunc func(ctx context.Context, activityID int) (<-chan scoreboard.Event, error)

type commandLine struct {
	db         *sql.DB // nil with the memory engine
	usrSvc     *user.Service
	catalogSvc *catalog.Service
	awardSvc   *award.Service
	students   performance.Repository
	watch      watchFunc // nil without redis
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -role ROLE [-group GROUP] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose migration command")
	fmt.Fprintln(cli.out, "  seed -file FILE - load activities and exercises from a TOML file")
	fmt.Fprintln(cli.out, "  recompute [-student ID] - recompute points totals from completed awards")
	fmt.Fprintln(cli.out, "  scoreboard -activity ID - follow the live scoreboard of an activity")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", string(user.RoleStudent), "One of student, professor or admin.")
	addUserGroup := addUserCmd.String("group", "", "The student's group.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "The TOML file to load.")

	recomputeCmd := flag.NewFlagSet("recompute", flag.ContinueOnError)
	recomputeStudent := recomputeCmd.Int("student", 0, "Only recompute this student.")

	scoreboardCmd := flag.NewFlagSet("scoreboard", flag.ContinueOnError)
	scoreboardActivity := scoreboardCmd.Int("activity", 0, "The activity to follow.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, seedCmd, recomputeCmd, scoreboardCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{
			Name:            *addUserName,
			Email:           *addUserEmail,
			Group:           *addUserGroup,
			Role:            user.Role(*addUserRole),
			Password:        pwd,
			PasswordConfirm: confirm,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(ctx, *seedFile)

	case "recompute":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.recompute(ctx, *recomputeStudent)

	case "scoreboard":
		if err := scoreboardCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *scoreboardActivity <= 0 {
			scoreboardCmd.Usage()
			return errHelp
		}
		return cli.followScoreboard(ctx, *scoreboardActivity)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// describeErr turns validation errors into a readable `field: message` list.
func (cli *commandLine) describeErr(err error) error {
	var fields []string
	var vErrs validator.ValidationErrors
	var cErr *core.ValidationError
	switch {
	case errors.As(err, &vErrs):
		for _, vErr := range vErrs {
			fields = append(fields, vErr.Field()+": "+vErr.Translate(cli.translator))
		}
	case errors.As(err, &cErr) && len(cErr.Fields) > 0:
		for _, fErr := range cErr.Fields {
			fields = append(fields, fErr.Field+": "+fErr.Error)
		}
	default:
		return err
	}
	sort.Strings(fields)
	return fmt.Errorf("invalid input:\n  %s", strings.Join(fields, "\n  "))
}
