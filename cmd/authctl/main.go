// Command authctl drives the auth backend from a terminal the way the
// sign-in form does: signup, login with verification polling, password
// reset, plus a few admin helpers.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/client"
	"github.com/iliyamo/superta-auth/internal/logger"
	"github.com/iliyamo/superta-auth/internal/password"
	"github.com/iliyamo/superta-auth/internal/utils"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	api *client.API
	ctl *client.Controller
	in  *bufio.Reader
	out io.Writer
	key string
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"signup":              {"signup [-email e] [-country c] [-institution i]", cmdSignup},
	"login":               {"login [-email e] [-wait 2m] [-logout]", cmdLogin},
	"check-email":         {"check-email <email>", cmdCheckEmail},
	"verify":              {"verify <token>", cmdVerify},
	"status":              {"status <uid>", cmdStatus},
	"forgot-password":     {"forgot-password <email>", cmdForgot},
	"reset-password":      {"reset-password -token t", cmdReset},
	"password-check":      {"password-check", cmdPasswordCheck},
	"hash-admin-password": {"hash-admin-password [-cost 12]", cmdHashAdmin},
	"admin-users":         {"admin-users [-email admin]", cmdAdminUsers},
	"debug-delete-user":   {"debug-delete-user [-admin admin] <email>", cmdDebugDelete},
}

var errIdentityKey = errors.New("identity API key required (-key or IDENTITY_API_KEY)")

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL := fs.String("api", envOr("AUTH_API_URL", "http://localhost:6000"), "backend base URL")
	apiKey := fs.String("key", os.Getenv("IDENTITY_API_KEY"), "identity provider web API key")
	emailService := fs.String("email-service", envOr("EMAIL_SERVICE", "SMTP"), "who verifies addresses: SMTP or FIREBASE")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: authctl [-api url] [-key apikey] [-email-service SMTP|FIREBASE] [-v] <command> [args]")
		names := make([]string, 0, len(commands))
		for n := range commands {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintln(stderr, "  "+commands[n].usage)
		}
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fs.Usage()
		return 2
	}
	source, err := client.ParseVerificationSource(*emailService)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	zl := zap.NewNop()
	if *verbose {
		if l, err := logger.New("debug", "dev"); err == nil {
			zl = l
		}
	}
	defer func() { _ = zl.Sync() }()

	api := client.NewAPI(*apiURL)
	ctl := client.NewController(api, client.NewIdentityREST(*apiKey), zl)
	ctl.Verification = source
	a := &app{
		api: api,
		ctl: ctl,
		in:  bufio.NewReader(stdin),
		out: stdout,
		key: *apiKey,
	}
	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, describe(err))
		zl.Debug("command failed", zap.String("command", fs.Arg(0)), zap.Error(err))
		return 1
	}
	return 0
}

// describe prefers the form's copy and falls back to the raw error, which
// is more useful on a terminal than the generic message.
func describe(err error) string {
	var ae *client.AuthError
	if msg := client.Message(err); msg != client.GenericMessage || errors.As(err, &ae) {
		return msg
	}
	return err.Error()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := subFlags("signup")
	email := fs.String("email", "", "")
	country := fs.String("country", "", "")
	institution := fs.String("institution", "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.key == "" {
		return errIdentityKey
	}

	var err error
	f := client.SignupForm{Country: *country, Institution: *institution}
	if f.Email, err = orPrompt(a.in, a.out, *email, "Email"); err != nil {
		return err
	}
	if f.Password, err = promptPassword(a.out, "Password"); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Strength: %s\n", password.Strength(f.Password))
	if f.Confirm, err = promptPassword(a.out, "Confirm password"); err != nil {
		return err
	}
	if f.Country, err = orPrompt(a.in, a.out, f.Country, "Country"); err != nil {
		return err
	}
	if f.Institution, err = orPrompt(a.in, a.out, f.Institution, "Institution"); err != nil {
		return err
	}

	if err := a.ctl.Signup(ctx, f); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Verification email sent to %s. Verify it, then log in.\n", f.Email)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := subFlags("login")
	email := fs.String("email", "", "")
	wait := fs.Duration("wait", 0, "")
	logout := fs.Bool("logout", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.key == "" {
		return errIdentityKey
	}

	e, err := orPrompt(a.in, a.out, *email, "Email")
	if err != nil {
		return err
	}
	pw, err := promptPassword(a.out, "Password")
	if err != nil {
		return err
	}

	err = a.ctl.Login(ctx, e, pw)
	if errors.Is(err, client.ErrNotVerified) && *wait > 0 {
		fmt.Fprintln(a.out, client.Message(err)+" Waiting for verification...")
		wctx, cancel := context.WithTimeout(ctx, *wait)
		err = a.ctl.WaitForVerification(wctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			err = client.ErrNotVerified
		}
	}
	if err != nil {
		return err
	}

	p := a.ctl.Profile()
	fmt.Fprintf(a.out, "Logged in as %s (%s, %s)\n", a.ctl.Session().Email, p.Country, p.Institution)
	if *logout {
		return a.ctl.Logout(ctx)
	}
	return nil
}

func cmdCheckEmail(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: check-email <email>")
	}
	ok, err := a.api.CheckEmail(ctx, args[0])
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "available")
	} else {
		fmt.Fprintln(a.out, "taken")
	}
	return nil
}

func cmdVerify(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: verify <token>")
	}
	res, err := a.api.VerifyEmail(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s)\n", res.Message, res.Email)
	return nil
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: status <uid>")
	}
	st, err := a.api.VerificationStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "verified=%t email=%s\n", st.Verified, st.Email)
	return nil
}

func cmdForgot(ctx context.Context, a *app, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	}
	msg, err := a.ctl.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func cmdReset(ctx context.Context, a *app, args []string) error {
	fs := subFlags("reset-password")
	token := fs.String("token", "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := orPrompt(a.in, a.out, *token, "Reset token")
	if err != nil {
		return err
	}
	pw, err := promptPassword(a.out, "New password")
	if err != nil {
		return err
	}
	if err := password.Check(pw); err != nil {
		return err
	}
	confirm, err := promptPassword(a.out, "Confirm password")
	if err != nil {
		return err
	}
	if pw != confirm {
		return client.ErrPasswordMismatch
	}

	msg, err := a.api.ResetPassword(ctx, t, pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func cmdPasswordCheck(_ context.Context, a *app, _ []string) error {
	pw, err := promptPassword(a.out, "Password")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Strength: %s\n", password.Strength(pw))
	if err := password.Check(pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func cmdHashAdmin(_ context.Context, a *app, args []string) error {
	fs := subFlags("hash-admin-password")
	cost := fs.Int("cost", 12, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw, err := promptPassword(a.out, "Admin password")
	if err != nil {
		return err
	}
	if pw == "" {
		return errors.New("empty password")
	}
	h, err := utils.HashPassword(pw, *cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, h)
	return nil
}

func adminLogin(ctx context.Context, a *app, email string) error {
	e, err := orPrompt(a.in, a.out, email, "Admin email")
	if err != nil {
		return err
	}
	pw, err := promptPassword(a.out, "Admin password")
	if err != nil {
		return err
	}
	_, err = a.api.AdminLogin(ctx, e, pw)
	return err
}

func cmdAdminUsers(ctx context.Context, a *app, args []string) error {
	fs := subFlags("admin-users")
	email := fs.String("email", os.Getenv("ADMIN_EMAIL"), "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := adminLogin(ctx, a, *email); err != nil {
		return err
	}
	list, err := a.api.ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tEMAIL\tCOUNTRY\tINSTITUTION\tCREATED")
	for _, u := range list.Users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.UID, u.Email, u.Country, u.Institution, u.CreatedAt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d users\n", list.Count)
	return nil
}

func cmdDebugDelete(ctx context.Context, a *app, args []string) error {
	fs := subFlags("debug-delete-user")
	admin := fs.String("admin", os.Getenv("ADMIN_EMAIL"), "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: debug-delete-user [-admin admin] <email>")
	}
	if err := adminLogin(ctx, a, *admin); err != nil {
		return err
	}
	if err := a.api.DebugDeleteUser(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s (if existed)\n", fs.Arg(0))
	return nil
}
