package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	apiclient "github.com/splax/classscribe/pkg/api/client"
	"github.com/splax/classscribe/pkg/api/session"
	"github.com/splax/classscribe/pkg/config"
	"golang.org/x/term"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "verify":
		err = commandVerify(args)
	case "resend":
		err = commandResend(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "profile":
		err = commandProfile(args)
	case "password":
		err = commandPassword(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the session and the per-command timeout.
type app struct {
	sess    *session.Context
	timeout time.Duration
}

func newApp(apiOverride string) (*app, error) {
	_ = config.LoadDotEnv(".env")
	cfg := config.LoadCLIConfig()
	base := cfg.APIURL
	if strings.TrimSpace(apiOverride) != "" {
		base = apiOverride
	}
	cli, err := apiclient.New(base, apiclient.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}
	path := cfg.SessionFile
	if path == "" {
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	sess, err := session.New(cli, session.NewFileStore(path))
	if err != nil {
		return nil, err
	}
	return &app{sess: sess, timeout: cfg.Timeout}, nil
}

func (a *app) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func apiFlag(fs *flag.FlagSet) *string {
	return fs.String("api", "", "API base URL (default $SCRIBE_API or "+apiclient.DefaultBaseURL+")")
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func promptSecret(label, supplied string) (string, error) {
	if strings.TrimSpace(supplied) != "" {
		return supplied, nil
	}
	fmt.Print(label + ": ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(bytes), nil
}

func report(res session.Result) error {
	if !res.Success {
		return errors.New(res.Error)
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	return nil
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	username := fs.String("username", "", "Username (3-30 letters, digits, underscore)")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	image := fs.String("image", "", "Profile image URL")
	api := apiFlag(fs)
	fs.Parse(args)

	if err := required("email", *email); err != nil {
		return err
	}
	if err := required("username", *username); err != nil {
		return err
	}
	secret, err := promptSecret("Password", *password)
	if err != nil {
		return err
	}
	a, err := newApp(*api)
	if err != nil {
		return err
	}
	ctx, cancel := a.context()
	defer cancel()
	return report(a.sess.Register(ctx, apiclient.RegisterInput{
		Email:        *email,
		Password:     secret,
		Username:     *username,
		ProfileImage: *image,
	}))
}

func commandVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	code := fs.String("code", "", "6-digit verification code")
	api := apiFlag(fs)
	fs.Parse(args)

	if err := required("email", *email); err != nil {
		return err
	}
	if err := required("code", *code); err != nil {
		return err
	}
	a, err := newApp(*api)
	if err != nil {
		return err
	}
	ctx, cancel := a.context()
	defer cancel()
	return report(a.sess.VerifyEmail(ctx, *email, *code))
}

func commandResend(args []string) error {
	fs := flag.NewFlagSet("resend", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	api := apiFlag(fs)
	fs.Parse(args)

	if err := required("email", *email); err != nil {
		return err
	}
	a, err := newApp(*api)
	if err != nil {
		return err
	}
	ctx, cancel := a.context()
	defer cancel()
	return report(a.sess.ResendCode(ctx, *email))
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	api := apiFlag(fs)
	fs.Parse(args)

	if err := required("email", *email); err != nil {
		return err
	}
	secret, err := promptSecret("Password", *password)
	if err != nil {
		return err
	}
	a, err := newApp(*api)
	if err != nil {
		return err
	}
	ctx, cancel := a.context()
	defer cancel()
	res := a.sess.Login(ctx, *email, secret)
	if err := report(res); err != nil {
		return err
	}
	if res.User != nil && !res.User.IsEmailVerified {
		fmt.Printf("email not verified yet; run 'scribe verify --email %s --code <code>'\n", res.User.Email)
	}
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	api := apiFlag(fs)
	fs.Parse(args)

	a, err := newApp(*api)
	if err != nil {
		return err
	}
	ctx, cancel := a.context()
	defer cancel()
	res := a.sess.Logout(ctx)
	if res.Error != "" {
		fmt.Fprintf(os.Stderr, "warning: server logout failed: %s\n", res.Error)
	}
	return report(res)
}

func commandProfile(args []string) error {
	if len(args) == 0 {
		return errors.New("profile subcommand required (show|update|avatar)")
	}
	switch args[0] {
	case "show":
		fs := flag.NewFlagSet("profile show", flag.ExitOnError)
		api := apiFlag(fs)
		fs.Parse(args[1:])
		a, err := loggedIn(*api)
		if err != nil {
			return err
		}
		ctx, cancel := a.context()
		defer cancel()
		res := a.sess.Profile(ctx)
		if err := report(res); err != nil {
			return err
		}
		printUser(*res.User)
		return nil
	case "update":
		fs := flag.NewFlagSet("profile update", flag.ExitOnError)
		fields := map[string]*string{
			"username": fs.String("username", "", "New username"),
			"first":    fs.String("first", "", "First name"),
			"last":     fs.String("last", "", "Last name"),
			"bio":      fs.String("bio", "", "Short bio"),
			"phone":    fs.String("phone", "", "Phone number"),
			"location": fs.String("location", "", "Location"),
			"website":  fs.String("website", "", "Website URL"),
			"image":    fs.String("image", "", "Profile image URL"),
		}
		api := apiFlag(fs)
		fs.Parse(args[1:])

		// Only flags given on the command line are sent, so "" can clear a field.
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		pick := func(name string) *string {
			if !set[name] {
				return nil
			}
			return fields[name]
		}
		update := apiclient.ProfileUpdate{
			Username:     pick("username"),
			FirstName:    pick("first"),
			LastName:     pick("last"),
			Bio:          pick("bio"),
			Phone:        pick("phone"),
			Location:     pick("location"),
			Website:      pick("website"),
			ProfileImage: pick("image"),
		}
		a, err := loggedIn(*api)
		if err != nil {
			return err
		}
		ctx, cancel := a.context()
		defer cancel()
		res := a.sess.UpdateProfile(ctx, update)
		if err := report(res); err != nil {
			return err
		}
		if res.User != nil {
			printUser(*res.User)
		}
		return nil
	case "avatar":
		fs := flag.NewFlagSet("profile avatar", flag.ExitOnError)
		contentType := fs.String("type", "image/png", "Image content type")
		api := apiFlag(fs)
		fs.Parse(args[1:])
		a, err := loggedIn(*api)
		if err != nil {
			return err
		}
		ctx, cancel := a.context()
		defer cancel()
		upload, res := a.sess.PresignAvatar(ctx, *contentType)
		if err := report(res); err != nil {
			return err
		}
		fmt.Printf("%s %s\nimage url: %s\nexpires: %s\n", upload.Method, upload.UploadURL, upload.ImageURL, upload.ExpiresAt.Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unknown profile subcommand: %s", args[0])
	}
}

func commandPassword(args []string) error {
	if len(args) == 0 {
		return errors.New("password subcommand required (change|forgot|reset)")
	}
	switch args[0] {
	case "change":
		fs := flag.NewFlagSet("password change", flag.ExitOnError)
		api := apiFlag(fs)
		fs.Parse(args[1:])
		a, err := loggedIn(*api)
		if err != nil {
			return err
		}
		current, err := promptSecret("Current password", "")
		if err != nil {
			return err
		}
		next, err := promptSecret("New password", "")
		if err != nil {
			return err
		}
		ctx, cancel := a.context()
		defer cancel()
		return report(a.sess.ChangePassword(ctx, current, next))
	case "forgot":
		fs := flag.NewFlagSet("password forgot", flag.ExitOnError)
		email := fs.String("email", "", "Email address")
		api := apiFlag(fs)
		fs.Parse(args[1:])
		if err := required("email", *email); err != nil {
			return err
		}
		a, err := newApp(*api)
		if err != nil {
			return err
		}
		ctx, cancel := a.context()
		defer cancel()
		return report(a.sess.ForgotPassword(ctx, *email))
	case "reset":
		fs := flag.NewFlagSet("password reset", flag.ExitOnError)
		token := fs.String("token", "", "Reset token from the emailed link")
		api := apiFlag(fs)
		fs.Parse(args[1:])
		if err := required("token", *token); err != nil {
			return err
		}
		next, err := promptSecret("New password", "")
		if err != nil {
			return err
		}
		a, err := newApp(*api)
		if err != nil {
			return err
		}
		ctx, cancel := a.context()
		defer cancel()
		return report(a.sess.ResetPassword(ctx, *token, next))
	default:
		return fmt.Errorf("unknown password subcommand: %s", args[0])
	}
}

func loggedIn(apiOverride string) (*app, error) {
	a, err := newApp(apiOverride)
	if err != nil {
		return nil, err
	}
	if !a.sess.IsAuthenticated() {
		return nil, errors.New("please login first using 'scribe login'")
	}
	return a, nil
}

func printUser(u apiclient.User) {
	verified := "no"
	if u.IsEmailVerified {
		verified = "yes"
	}
	fmt.Printf("id:        %s\n", u.ID)
	fmt.Printf("email:     %s (verified: %s)\n", u.Email, verified)
	fmt.Printf("username:  %s\n", u.Username)
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		fmt.Printf("name:      %s\n", name)
	}
	for _, row := range [][2]string{{"bio", u.Bio}, {"phone", u.Phone}, {"location", u.Location}, {"website", u.Website}, {"image", u.ProfileImage}} {
		if row[1] != "" {
			fmt.Printf("%-10s %s\n", row[0]+":", row[1])
		}
	}
	fmt.Printf("role:      %s\n", u.Role)
}

func printUsage() {
	fmt.Printf("scribe CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	scribe register --email user@example.com --username name [--password secret] [--image url]
	scribe verify --email user@example.com --code 123456
	scribe resend --email user@example.com
	scribe login --email user@example.com [--password secret]
	scribe logout
	scribe profile show
	scribe profile update [--username u] [--first f] [--last l] [--bio b] [--phone p] [--location l] [--website url] [--image url]
	scribe profile avatar [--type image/png]
	scribe password change
	scribe password forgot --email user@example.com
	scribe password reset --token <token>
	scribe version

Every command accepts --api <url>. Defaults come from SCRIBE_API, SCRIBE_SESSION_FILE and SCRIBE_TIMEOUT.
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
