// Command admin manages administrator accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"mentorlink/internal/config"
	"mentorlink/internal/database"
	"mentorlink/internal/models"
	"mentorlink/internal/repository"
)

const usage = `Usage:
  admin promote <email>                   Promote a user to admin
  admin demote <email> <student|alumni>   Return an admin to a regular role
  admin list-admins                       List all admins
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	url, err := config.LoadDatabaseURL()
	if err != nil {
		fmt.Fprintf(stderr, "admin: %v\n", err)
		return 1
	}
	db, err := database.Open(url)
	if err != nil {
		fmt.Fprintf(stderr, "admin: %v\n", err)
		return 1
	}
	defer func() { _ = database.Close(db) }()

	if err := execute(ctx, repository.NewUserRepository(db), args, stdout); err != nil {
		fmt.Fprintf(stderr, "admin: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid arguments, run without arguments for usage")

func execute(ctx context.Context, users repository.UserRepository, args []string, out io.Writer) error {
	switch args[0] {
	case "promote":
		if len(args) != 2 {
			return errUsage
		}
		return promote(ctx, users, args[1], out)
	case "demote":
		if len(args) != 3 {
			return errUsage
		}
		return demote(ctx, users, args[1], models.UserRole(args[2]), out)
	case "list-admins":
		return listAdmins(ctx, users, out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func lookup(ctx context.Context, users repository.UserRepository, email string) (*models.User, error) {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return user, nil
}

func promote(ctx context.Context, users repository.UserRepository, email string, out io.Writer) error {
	user, err := lookup(ctx, users, email)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		fmt.Fprintf(out, "%s is already an admin\n", user.Email)
		return nil
	}

	user.Role = models.RoleAdmin
	user.IsVerified = true
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("promote %s: %w", user.Email, err)
	}
	fmt.Fprintf(out, "Promoted %s to admin\n", user.Email)
	return nil
}

func demote(ctx context.Context, users repository.UserRepository, email string, role models.UserRole, out io.Writer) error {
	if role != models.RoleStudent && role != models.RoleAlumni {
		return fmt.Errorf("role must be student or alumni, got %q", role)
	}
	user, err := lookup(ctx, users, email)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		fmt.Fprintf(out, "%s is not an admin\n", user.Email)
		return nil
	}

	admins, err := users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return fmt.Errorf("refusing to demote the last admin")
	}

	user.Role = role
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("demote %s: %w", user.Email, err)
	}
	fmt.Fprintf(out, "Demoted %s to %s\n", user.Email, role)
	return nil
}

func listAdmins(ctx context.Context, users repository.UserRepository, out io.Writer) error {
	admins, _, err := users.List(ctx, repository.UserFilter{Role: models.RoleAdmin, Limit: 1000})
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found")
		return nil
	}
	for _, a := range admins {
		fmt.Fprintf(out, "%s\t%s\t%s\n", a.ID, a.Email, a.Name)
	}
	return nil
}
