package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tasknest/go-tasknest-client/gateway"
	"github.com/tasknest/go-tasknest-client/internal/config"
	"github.com/tasknest/go-tasknest-client/reminders"
	"github.com/tasknest/go-tasknest-client/session"
	"github.com/tasknest/go-tasknest-client/tokenstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	if len(args) == 0 {
		usage()
		return nil
	}

	app, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		return app.login(ctx, args[1:])
	case "register":
		return app.register(ctx, args[1:])
	case "logout":
		return app.logout(ctx)
	case "whoami":
		return app.whoami(ctx)
	case "update-profile":
		return app.updateProfile(ctx, args[1:])
	case "change-password":
		return app.changePassword(ctx)
	case "check":
		return app.check(ctx, args[1:])
	case "reminders":
		return app.reminders(ctx, args[1:])
	case "watch":
		cancel() // watch manages its own lifetime
		return app.watch(args[1:])
	case "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	displayAppname("TaskNest")
	fmt.Println(`Usage: tasknest <command> [flags]

Commands:
  login            Log in and persist the session
  register         Create an account and log in
  logout           Log out and discard stored tokens
  whoami           Show the logged-in user
  update-profile   Update profile fields (-first, -last, -avatar)
  change-password  Change the account password
  check            Check username/email availability (-username, -email)
  reminders        Manage reminders (list|add|ack|pause|resume|delete)
  watch            Poll for due reminders until interrupted`)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// app bundles the wired client stack behind the subcommands.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *tokenstore.FileStore
	gw     *gateway.Gateway
	sess   *session.Session
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	store, err := tokenstore.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	gw, err := gateway.New(cfg.BaseURL, store,
		gateway.WithHTTPClient(httpClient),
		gateway.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	sess, err := session.New(cfg.BaseURL, session.Deps{Gateway: gw, Store: store},
		session.WithHTTPClient(httpClient),
		session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store, gw: gw, sess: sess}, nil
}

// requireLogin resumes any persisted session and fails if none survives.
func (a *app) requireLogin(ctx context.Context) error {
	if err := a.sess.Initialize(ctx); err != nil {
		return err
	}
	if !a.sess.IsAuthenticated() {
		return fmt.Errorf("not logged in; run `tasknest login` first")
	}
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "Username or email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		*username = prompt("Username or email: ")
	}
	password := prompt("Password: ")

	if err := a.sess.Login(ctx, *username, password); err != nil {
		return err
	}
	fmt.Printf("Welcome back, %s\n", a.sess.User().DisplayName())
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "Desired username")
	email := fs.String("email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		*username = prompt("Username: ")
	}
	if *email == "" {
		*email = prompt("Email: ")
	}

	if avail := a.gw.CheckUsername(ctx, *username); !avail.Available {
		return fmt.Errorf("username %q is taken", *username)
	}
	if avail := a.gw.CheckEmail(ctx, *email); !avail.Available {
		return fmt.Errorf("email %q is already registered", *email)
	}

	password := prompt("Password: ")
	if confirm := prompt("Confirm password: "); confirm != password {
		return fmt.Errorf("passwords do not match")
	}

	if err := a.sess.Register(ctx, *username, *email, password); err != nil {
		return err
	}
	fmt.Printf("Account created. Welcome, %s\n", a.sess.User().DisplayName())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.sess.Initialize(ctx); err != nil {
		return err
	}
	if err := a.sess.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	u := a.sess.User()
	fmt.Printf("%s <%s>\n", u.Username, u.Email)
	if name := u.DisplayName(); name != u.Username {
		fmt.Printf("Name:     %s\n", name)
	}
	if !u.LastLogin.IsZero() {
		fmt.Printf("Last seen %s\n", u.LastLogin.Format(time.RFC1123))
	}
	return nil
}

func (a *app) updateProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	avatar := fs.String("avatar", "", "Avatar URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only fields the user passed explicitly are sent; the rest are
	// left untouched server-side.
	var update gateway.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "first":
			update.FirstName = first
		case "last":
			update.LastName = last
		case "avatar":
			update.AvatarURL = avatar
		}
	})
	if update.FirstName == nil && update.LastName == nil && update.AvatarURL == nil {
		return fmt.Errorf("nothing to update; pass -first, -last or -avatar")
	}

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	u, err := a.sess.UpdateProfile(ctx, update)
	if err != nil {
		return err
	}
	fmt.Printf("Profile updated for %s\n", u.DisplayName())
	return nil
}

func (a *app) changePassword(ctx context.Context) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	oldPassword := prompt("Current password: ")
	newPassword := prompt("New password: ")
	if confirm := prompt("Confirm new password: "); confirm != newPassword {
		return fmt.Errorf("passwords do not match")
	}
	if err := a.sess.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return err
	}
	fmt.Println("Password changed")
	return nil
}

func (a *app) check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	username := fs.String("username", "", "Username to check")
	email := fs.String("email", "", "Email to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" && *email == "" {
		return fmt.Errorf("pass -username and/or -email")
	}
	if *username != "" {
		printAvailability("username "+*username, a.gw.CheckUsername(ctx, *username))
	}
	if *email != "" {
		printAvailability("email "+*email, a.gw.CheckEmail(ctx, *email))
	}
	return nil
}

func printAvailability(subject string, avail gateway.Availability) {
	switch {
	case avail.Unknown:
		fmt.Printf("%s: could not be checked, assuming available\n", subject)
	case avail.Available:
		fmt.Printf("%s: available\n", subject)
	case avail.Message != "":
		fmt.Printf("%s: %s\n", subject, avail.Message)
	default:
		fmt.Printf("%s: taken\n", subject)
	}
}

func (a *app) reminders(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tasknest reminders <list|add|ack|pause|resume|delete>")
	}
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	client, err := reminders.NewClient(a.sess)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		return a.listReminders(ctx, client, args[1:])
	case "add":
		return a.addReminder(ctx, client, args[1:])
	case "ack":
		return reminderByID(ctx, args[1:], client.Acknowledge)
	case "pause":
		return reminderByID(ctx, args[1:], client.Pause)
	case "resume":
		return reminderByID(ctx, args[1:], client.Resume)
	case "delete":
		return reminderByID(ctx, args[1:], client.Delete)
	default:
		return fmt.Errorf("unknown reminders command %q", args[0])
	}
}

func (a *app) listReminders(ctx context.Context, client *reminders.Client, args []string) error {
	fs := flag.NewFlagSet("reminders list", flag.ContinueOnError)
	status := fs.String("status", "", "Filter by status (active|paused)")
	search := fs.String("search", "", "Filter by content substring")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := client.List(ctx, *status, *search)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No reminders")
		return nil
	}
	for _, r := range list {
		fmt.Println(formatReminder(r))
	}
	return nil
}

func (a *app) addReminder(ctx context.Context, client *reminders.Client, args []string) error {
	fs := flag.NewFlagSet("reminders add", flag.ContinueOnError)
	content := fs.String("content", "", "Reminder text")
	frequency := fs.String("frequency", reminders.FrequencyDaily, "daily|weekly|weekdays")
	day := fs.Int("day", -1, "Day of week 0-6 (weekly only)")
	remindTime := fs.String("time", "09:00", "Time of day, HH:MM UTC")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *content == "" {
		return fmt.Errorf("-content is required")
	}

	spec := reminders.Spec{Content: *content, Frequency: *frequency, RemindTime: *remindTime}
	if *day >= 0 {
		spec.DayOfWeek = day
	}
	created, err := client.Create(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", formatReminder(*created))
	return nil
}

func reminderByID(ctx context.Context, args []string, op func(context.Context, int64) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one reminder id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid reminder id %q", args[0])
	}
	if err := op(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Reminder #%d updated\n", id)
	return nil
}

func formatReminder(r reminders.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", r.ID, r.Content)
	if r.Frequency != "" {
		fmt.Fprintf(&b, " (%s", r.Frequency)
		if r.DayOfWeek != nil {
			fmt.Fprintf(&b, ", day %d", *r.DayOfWeek)
		}
		if r.RemindTime != "" {
			fmt.Fprintf(&b, " at %s", r.RemindTime)
		}
		b.WriteString(")")
	}
	if r.Status == reminders.StatusPaused {
		b.WriteString(" [paused]")
	}
	return b.String()
}

// watch polls for due reminders until interrupted. Lines typed on stdin
// drive it: "ack <id>", "snooze <duration>", "quit".
func (a *app) watch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", a.cfg.PollInterval, "Poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	client, err := reminders.NewClient(a.sess)
	if err != nil {
		return err
	}

	poller, err := reminders.NewPoller(client, printDueReminders,
		reminders.WithInterval(*interval),
		reminders.WithPollerLogger(a.logger))
	if err != nil {
		return err
	}

	displayAppname("TaskNest")
	fmt.Println("Watching for due reminders. Commands: ack <id>, snooze <duration>, quit")
	go poller.Start(ctx)
	go a.watchInput(ctx, cancel, poller)

	waitForStopSignal(ctx)
	return nil
}

func printDueReminders(due []reminders.Reminder) {
	if len(due) == 0 {
		return
	}
	fmt.Printf("\n--- %d due at %s ---\n", len(due), time.Now().Format("15:04"))
	for _, r := range due {
		fmt.Println(formatReminder(r))
	}
}

func (a *app) watchInput(ctx context.Context, cancel context.CancelFunc, poller *reminders.Poller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ack":
			if len(fields) != 2 {
				fmt.Println("usage: ack <id>")
				continue
			}
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				fmt.Printf("invalid id %q\n", fields[1])
				continue
			}
			poller.Acknowledge(ctx, id)
		case "snooze":
			if len(fields) != 2 {
				fmt.Println("usage: snooze <duration>")
				continue
			}
			window, err := time.ParseDuration(fields[1])
			if err != nil {
				fmt.Printf("invalid duration %q\n", fields[1])
				continue
			}
			poller.Snooze(window)
			fmt.Printf("Snoozed for %s\n", window)
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func waitForStopSignal(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}
}

func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
