package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkordes/travel-log/internal/client"
	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/search"
	"github.com/pkordes/travel-log/internal/view"
)

const (
	defaultExportFile    = "travel-log.json"
	defaultCSVExportFile = "travel-log.csv"
)

type command struct {
	needsTracker bool
	run          func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"list":           {true, cmdList},
	"add":            {true, cmdAdd},
	"edit":           {true, cmdEdit},
	"rm":             {true, cmdRemove},
	"toggle":         {true, cmdToggle},
	"stats":          {true, cmdStats},
	"import":         {true, cmdImport},
	"export":         {true, cmdExport},
	"search":         {false, cmdSearch},
	"signup":         {false, cmdSignUp},
	"signin":         {false, cmdSignIn},
	"signout":        {false, cmdSignOut},
	"confirm":        {false, cmdConfirm},
	"resend":         {false, cmdResend},
	"recover":        {false, cmdRecover},
	"reset-password": {false, cmdResetPassword},
}

// ---- places ----------------------------------------------------------------

func cmdList(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	q := fs.String("q", "", "text filter over name, country, city and tags")
	status := fs.String("status", view.StatusAll, "all, visited or wishlist")
	if err := fs.Parse(args); err != nil {
		return err
	}
	printPlaces(a.out, a.tracker.Filter(*q, *status))
	return nil
}

func printPlaces(w io.Writer, places []domain.Place) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOUNTRY\tCITY\tSTATUS\tDATE\tRATING\tTAGS")
	for _, p := range places {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Name, countryLabel(p), p.City, p.Status, p.DateVisited, p.Rating, strings.Join(p.Tags, ", "))
	}
	_ = tw.Flush()
}

func countryLabel(p domain.Place) string {
	if p.CountryCode == "" {
		return p.Country
	}
	return fmt.Sprintf("%s (%s)", p.Country, p.CountryCode)
}

// placeFlags registers the editable fields on fs.
type placeFlags struct {
	name, country, code, city, status, date, notes, tags *string
	lat, lng                                             *float64
	rating                                               *int
}

func newPlaceFlags(fs *flag.FlagSet) placeFlags {
	return placeFlags{
		name:    fs.String("name", "", "place name"),
		country: fs.String("country", "", "country name"),
		code:    fs.String("code", "", "ISO 3166-1 alpha-2 country code"),
		city:    fs.String("city", "", "city"),
		status:  fs.String("status", string(domain.StatusVisited), "visited or wishlist"),
		date:    fs.String("date", "", "date visited (YYYY-MM-DD)"),
		notes:   fs.String("notes", "", "free-form notes"),
		tags:    fs.String("tags", "", "comma-separated tags"),
		lat:     fs.Float64("lat", 0, "latitude (default: last map position)"),
		lng:     fs.Float64("lng", 0, "longitude (default: last map position)"),
		rating:  fs.Int("rating", 0, "rating 0-5"),
	}
}

// setFlags reports which flags were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	pf := newPlaceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)
	in := domain.PlaceInput{
		Name:        *pf.name,
		Country:     *pf.country,
		CountryCode: *pf.code,
		City:        *pf.city,
		Status:      domain.Status(*pf.status),
		DateVisited: *pf.date,
		Rating:      *pf.rating,
		Notes:       *pf.notes,
		Tags:        domain.SplitTags(*pf.tags),
	}
	if set["lat"] {
		in.Lat = pf.lat
	}
	if set["lng"] {
		in.Lng = pf.lng
	}
	p, err := a.tracker.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s (%s)\n", p.Name, p.ID)
	return nil
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	id := fs.String("id", "", "place id")
	pf := newPlaceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	var patch domain.PlacePatch
	if set["name"] {
		patch.Name = pf.name
	}
	if set["country"] {
		patch.Country = pf.country
	}
	if set["code"] {
		patch.CountryCode = pf.code
	}
	if set["city"] {
		patch.City = pf.city
	}
	if set["status"] {
		s := domain.Status(*pf.status)
		patch.Status = &s
	}
	if set["date"] {
		patch.DateVisited = pf.date
	}
	if set["notes"] {
		patch.Notes = pf.notes
	}
	if set["tags"] {
		tags := domain.SplitTags(*pf.tags)
		patch.Tags = &tags
	}
	if set["lat"] {
		patch.Lat = pf.lat
	}
	if set["lng"] {
		patch.Lng = pf.lng
	}
	if set["rating"] {
		if *pf.rating < 0 || *pf.rating > 5 {
			return fmt.Errorf("%w: rating must be between 0 and 5", domain.ErrValidation)
		}
		patch.Rating = pf.rating
	}

	p, err := a.tracker.Update(ctx, *id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated %s (%s)\n", p.Name, p.ID)
	return nil
}

func idFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "place id")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *id == "" {
		return "", fmt.Errorf("%w: -id is required", domain.ErrValidation)
	}
	return *id, nil
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	id, err := idFlag("rm", args)
	if err != nil {
		return err
	}
	if err := a.tracker.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "removed %s\n", id)
	return nil
}

func cmdToggle(ctx context.Context, a *app, args []string) error {
	id, err := idFlag("toggle", args)
	if err != nil {
		return err
	}
	p, err := a.tracker.ToggleStatus(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", p.Name, p.Status)
	return nil
}

func cmdStats(_ context.Context, a *app, _ []string) error {
	s := a.tracker.Stats()
	fmt.Fprintf(a.out, "visited:   %d\nwishlist:  %d\ncountries: %d\n",
		s.VisitedCount, s.WishlistCount, s.DistinctVisitedCountryCount)
	return nil
}

// cmdImport loads a file into the collection. While signed in the file
// replaces the stored rows on the server; the in-memory replacement alone
// would be lost when the command exits.
func cmdImport(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tracker import FILE")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var n int
	if a.tracker.Session().IsAuthenticated() {
		n, err = a.api.ImportPlaces(ctx, data)
	} else {
		n, err = a.tracker.Import(ctx, data)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %d places\n", n)
	return nil
}

func cmdExport(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	asCSV := fs.Bool("csv", false, "write a CSV table instead of the import format")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := defaultExportFile
	if *asCSV {
		path = defaultCSVExportFile
	}
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	export := a.tracker.Export
	if *asCSV {
		export = a.tracker.ExportCSV
	}
	data, err := export()
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "exported to %s\n", path)
	return nil
}

// cmdSearch looks places up. With -i every stdin line is a keystroke-level
// query; only the results of the latest one are printed.
func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	interactive := fs.Bool("i", false, "read queries from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	nc := search.NewNominatimClient(a.cfg.NominatimURL, search.WithLogger(a.log))

	if !*interactive {
		q := strings.Join(fs.Args(), " ")
		if strings.TrimSpace(q) == "" {
			return errors.New("usage: tracker search QUERY")
		}
		found, err := nc.Search(ctx, q)
		if err != nil {
			return err
		}
		printCandidates(a.out, found)
		return nil
	}

	d := search.NewDebouncer(nc, a.cfg.SearchDebounce, func(r search.Result) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "search %q failed: %v\n", r.Query, r.Err)
			return
		}
		if r.Query != "" {
			fmt.Fprintf(a.out, "-- %s\n", r.Query)
			printCandidates(a.out, r.Candidates)
		}
	}, a.log)
	defer d.Close()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		d.Query(sc.Text())
	}
	return sc.Err()
}

func printCandidates(w io.Writer, cs []search.Candidate) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f,%.4f\n", c.Name, c.City, c.CountryCode, c.Lat, c.Lng)
	}
	_ = tw.Flush()
}

// ---- account ---------------------------------------------------------------

func credentialFlags(name string, args []string) (email, password string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	e := fs.String("email", "", "account email")
	p := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	return *e, *p, nil
}

func cmdSignUp(ctx context.Context, a *app, args []string) error {
	email, password, err := credentialFlags("signup", args)
	if err != nil {
		return err
	}
	if exists, err := a.api.EmailExists(ctx, email); err == nil && exists != nil && *exists {
		return fmt.Errorf("%w: %s is already registered, use signin", domain.ErrConflict, email)
	}
	res, err := a.api.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if !res.SessionPresent() {
		fmt.Fprintln(a.out, "account created; open the link mailed to you, or run: tracker confirm URL")
		return nil
	}
	fmt.Fprintf(a.out, "signed up and signed in as %s\n", res.User.Email)
	return nil
}

func cmdSignIn(ctx context.Context, a *app, args []string) error {
	email, password, err := credentialFlags("signin", args)
	if err != nil {
		return err
	}
	sess, err := a.api.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", sess.User.Email)
	return nil
}

func cmdSignOut(ctx context.Context, a *app, _ []string) error {
	if err := a.api.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func cmdConfirm(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tracker confirm URL")
	}
	token, err := client.ParseConfirmationLink(args[0])
	if err != nil {
		return err
	}
	sess, err := a.api.ConfirmEmail(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "email confirmed; signed in as %s\n", sess.User.Email)
	return nil
}

func cmdResend(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("resend", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	redirect := fs.String("redirect", "", "landing page of the confirmation link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.api.ResendConfirmation(ctx, *email, *redirect); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "if that address awaits confirmation, a new link is on its way")
	return nil
}

func cmdRecover(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	redirect := fs.String("redirect", "", "landing page of the reset link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.api.SendPasswordReset(ctx, *email, *redirect); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "if that address is registered, a reset link is on its way")
	return nil
}

func cmdResetPassword(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: tracker reset-password -password P URL")
	}
	sess, err := client.ParseRecoveryLink(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := a.api.SetSession(ctx, sess); err != nil {
		return err
	}
	ident, err := a.api.UpdatePassword(ctx, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "password updated for %s\n", ident.Email)
	return nil
}
