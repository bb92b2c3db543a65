package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/school"
	"github.com/learnmate/learnmate/core/user"
	"github.com/learnmate/learnmate/storage/database"
)

const minPasswordLength = 6

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")

	// operator acts on behalf of whoever runs the CLI.
	operator = auth.User{ID: "cli", FullName: "Operator", Role: auth.RoleSuperuser}
)

type commandLine struct {
	db       *sqlx.DB
	users    *user.Service
	schools  *school.Service
	sessions auth.SessionStore
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -name FULL_NAME -role ROLE [-school SCHOOL_ID] - create an account, superusers included")
	fmt.Println("  resetpassword -email EMAIL - reset an account's password")
	fmt.Println("  createschool -name NAME -admin ADMIN_ID - create a school for an admin")
	fmt.Println("  sweepsessions - remove expired sessions")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, redo, ...)")
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The account's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The account's full name.")
	addUserRole := addUserCmd.String("role", "", "One of superuser, admin, teacher, student.")
	addUserSchool := addUserCmd.String("school", "", "The school the account belongs to (optional).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	createSchoolCmd := flag.NewFlagSet("createschool", flag.ContinueOnError)
	createSchoolName := createSchoolCmd.String("name", "", "The school's name.")
	createSchoolAdmin := createSchoolCmd.String("admin", "", "The ID of the admin running the school.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) < minPasswordLength {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewAccount{
			Email:    *addUserEmail,
			FullName: *addUserName,
			Role:     core.CleanString(*addUserRole, true /* lower */),
			SchoolID: core.CleanString(*addUserSchool, true /* lower */),
			Password: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) < minPasswordLength {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.users.SetPassword(ctx, *resetPasswordEmail, pwd)

	case "createschool":
		if err := createSchoolCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		name := core.CleanString(*createSchoolName)
		if name == "" || *createSchoolAdmin == "" {
			createSchoolCmd.Usage()
			return errHelp
		}
		s, err := cli.schools.Create(ctx, operator, school.NewSchool{SchoolName: name, AdminID: core.CleanString(*createSchoolAdmin, true)})
		if err != nil {
			return err
		}
		fmt.Printf("school %q created: %s\n", s.SchoolName, s.ID)
		return nil

	case "sweepsessions":
		n, err := cli.sessions.SweepExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d expired sessions removed\n", n)
		return nil

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return database.Run(ctx, args[2], cli.db, args[3:]...)

	default:
		cli.printUsage()
		return errHelp
	}
}

// addUser creates an account. Superusers never belong to a school.
func (cli *commandLine) addUser(ctx context.Context, data user.NewAccount) error {
	if data.Role == auth.RoleSuperuser.String() {
		data.SchoolID = ""
	}
	p, err := cli.users.AddAccount(ctx, data)
	if err != nil {
		return err
	}
	fmt.Printf("%s %q created: %s\n", p.Role, p.Email, p.ID)
	return nil
}
