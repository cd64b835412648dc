package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"expenzoo/internal/core"
	"expenzoo/internal/export"
	"expenzoo/internal/ledger"
	"expenzoo/internal/metrics"
)

const usage = `usage: expenzoo <command> [flags] [args]

commands:
  add        -title T -amount N -category C [-mode M] [-notes N] [-date YYYY-MM-DD]
  list       [-category C] [-json]
  update     ID [-title T] [-amount N] [-category C] [-mode M] [-notes N] [-date YYYY-MM-DD]
  delete     ID
  clear      -yes
  budget     [AMOUNT]
  categories [list | add NAME | rename OLD NEW | remove NAME]
  summary    [-json]
  backup     [-o FILE]
  restore    FILE
  reset      -yes
  export     csv|xlsx [-o FILE] | sheets
`

var errUsage = errors.New("invalid usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		return 2
	}
	return 1
}

type sheetsPusher func(ctx context.Context, expenses []core.Expense, dateLayout string) error

type app struct {
	store      *ledger.Store
	out        io.Writer
	now        func() time.Time
	dateLayout string
	sheets     sheetsPusher
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return usageErr("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return a.add(ctx, rest)
	case "list", "ls":
		return a.list(rest)
	case "update":
		return a.update(ctx, rest)
	case "delete", "rm":
		return a.delete(ctx, rest)
	case "clear":
		return a.clear(ctx, rest)
	case "budget":
		return a.budget(ctx, rest)
	case "categories", "category":
		return a.categories(ctx, rest)
	case "summary":
		return a.summary(rest)
	case "backup":
		return a.backup(ctx, rest)
	case "restore":
		return a.restore(ctx, rest)
	case "reset":
		return a.reset(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return usageErr("unknown command %q", cmd)
	}
}

// expenseFlags binds the editable fields of an expense to a flag set.
type expenseFlags struct {
	title, amount, category, mode, notes, date string
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (f *expenseFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "expense title (3-100 characters)")
	fs.StringVar(&f.amount, "amount", "", "amount in rupees")
	fs.StringVar(&f.category, "category", "", "category name")
	fs.StringVar(&f.mode, "mode", "", "payment mode: Cash, Online/UPI, Card/Bank, Other")
	fs.StringVar(&f.notes, "notes", "", "free text notes")
	fs.StringVar(&f.date, "date", "", "expense date, YYYY-MM-DD (default today)")
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add", a.out)
	var f expenseFlags
	f.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := core.ParseAmount(f.amount)
	if err != nil {
		return err
	}
	date := strings.TrimSpace(f.date)
	if date == "" {
		date = core.DateOf(a.now()).String()
	}
	e, err := a.store.AddExpense(ctx, core.ExpenseInput{
		Title:       f.title,
		Amount:      amount,
		Category:    f.category,
		PaymentMode: f.mode,
		Notes:       f.notes,
		Date:        date,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s: %s %s on %s\n", e.ID, e.Title, core.FormatRupees(e.Amount), e.Date)
	return nil
}

func (a *app) list(args []string) error {
	fs := newFlagSet("list", a.out)
	category := fs.String("category", "", "only show this category")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	items := a.store.Ledger.FilterByCategory(*category)
	if *asJSON {
		return a.printJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No expenses yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tTITLE\tAMOUNT\tMODE")
	for _, e := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Category, e.Title, core.FormatRupees(e.Amount), e.PaymentMode)
	}
	return tw.Flush()
}

func (a *app) update(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return usageErr("update needs an expense id")
	}
	id := args[0]

	fs := newFlagSet("update", a.out)
	var f expenseFlags
	f.bind(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var patch core.ExpensePatch
	var parseErr error
	fs.Visit(func(fl *flag.Flag) {
		v := fl.Value.String()
		switch fl.Name {
		case "title":
			patch.Title = &v
		case "amount":
			amount, err := core.ParseAmount(v)
			if err != nil {
				parseErr = err
				return
			}
			patch.Amount = &amount
		case "category":
			patch.Category = &v
		case "mode":
			patch.PaymentMode = &v
		case "notes":
			patch.Notes = &v
		case "date":
			patch.Date = &v
		}
	})
	if parseErr != nil {
		return parseErr
	}
	if patch.Category != nil && !a.store.Settings.HasCategory(strings.TrimSpace(*patch.Category)) {
		return &core.ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a known category", *patch.Category)}
	}

	e, found, err := a.store.Ledger.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(a.out, "No expense with id %s.\n", id)
		return nil
	}
	fmt.Fprintf(a.out, "Updated %s: %s %s\n", e.ID, e.Title, core.FormatRupees(e.Amount))
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErr("delete needs exactly one expense id")
	}
	if _, ok := a.store.Ledger.Get(args[0]); !ok {
		fmt.Fprintf(a.out, "No expense with id %s.\n", args[0])
		return nil
	}
	if err := a.store.Ledger.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s.\n", args[0])
	return nil
}

func (a *app) clear(ctx context.Context, args []string) error {
	fs := newFlagSet("clear", a.out)
	yes := fs.Bool("yes", false, "confirm deleting every expense")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return usageErr("clear deletes every expense; pass -yes to confirm")
	}
	if err := a.store.Ledger.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All expenses deleted.")
	return nil
}

func (a *app) budget(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		fmt.Fprintf(a.out, "Budget: %s\n", core.FormatRupees(a.store.Settings.Budget()))
		return nil
	case 1:
		v, err := core.ParseAmount(args[0])
		if err != nil {
			return &core.ValidationError{Field: "budget", Reason: "must be a positive number"}
		}
		if err := a.store.Settings.SetBudget(ctx, v); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Budget set to %s.\n", core.FormatRupees(v))
		return nil
	default:
		return usageErr("budget takes at most one amount")
	}
}

func (a *app) categories(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	s := a.store.Settings
	switch sub {
	case "list", "ls":
		for _, c := range s.Categories() {
			if core.IsProtectedCategory(c) {
				fmt.Fprintf(a.out, "%s (built-in)\n", c)
				continue
			}
			fmt.Fprintln(a.out, c)
		}
		return nil
	case "add":
		if len(args) != 1 {
			return usageErr("categories add needs one name")
		}
		name, err := s.AddCategory(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Category %s added.\n", name)
		return nil
	case "rename":
		if len(args) != 2 {
			return usageErr("categories rename needs OLD and NEW")
		}
		if err := s.RenameCategory(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Category %s renamed to %s.\n", strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
		return nil
	case "remove", "rm":
		if len(args) != 1 {
			return usageErr("categories remove needs one name")
		}
		name := strings.TrimSpace(args[0])
		if core.IsProtectedCategory(name) {
			return fmt.Errorf("category %s is built in and cannot be removed", name)
		}
		if err := s.RemoveCategory(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Category %s removed.\n", name)
		return nil
	default:
		return usageErr("unknown categories command %q", sub)
	}
}

func (a *app) summary(args []string) error {
	fs := newFlagSet("summary", a.out)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sum := metrics.NewEngine(a.store.Ledger, a.store.Settings, a.now).Summary()
	if *asJSON {
		return a.printJSON(sum)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Expenses\t%d\n", sum.Count)
	fmt.Fprintf(tw, "Total spent\t%s\n", core.FormatRupees(sum.TotalSpent))
	fmt.Fprintf(tw, "Spent in %s %d\t%s\n", time.Month(sum.Month), sum.Year, core.FormatRupees(sum.MonthSpent))
	fmt.Fprintf(tw, "Budget\t%s\n", core.FormatRupees(sum.Budget))
	fmt.Fprintf(tw, "Used\t%s%%\n", strconv.FormatFloat(sum.BudgetUsedPercent, 'f', 1, 64))
	fmt.Fprintf(tw, "Remaining\t%s\n", core.FormatRupees(sum.Remaining))
	fmt.Fprintf(tw, "Health\t%s\n", sum.Health)
	if sum.HighestExpense != nil {
		fmt.Fprintf(tw, "Highest\t%s (%s)\n", sum.HighestExpense.Title, core.FormatRupees(sum.HighestExpense.Amount))
	}
	if len(sum.CategoryBreakdown) > 0 {
		fmt.Fprintln(tw, "\nCATEGORY\tAMOUNT\tSHARE")
		for _, c := range sum.CategoryBreakdown {
			fmt.Fprintf(tw, "%s\t%s\t%s%%\n", c.Name, core.FormatRupees(c.Amount), strconv.FormatFloat(c.Percent, 'f', 1, 64))
		}
	}
	return tw.Flush()
}

func (a *app) backup(ctx context.Context, args []string) error {
	fs := newFlagSet("backup", a.out)
	path := fs.String("o", "", "output file (default expenzoo_backup_<millis>.json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := a.store.Backup.ExportJSON(ctx)
	if err != nil {
		return err
	}
	return a.writeFile(*path, export.FileName("backup", a.now()), data)
}

func (a *app) restore(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErr("restore needs a backup file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := a.store.Backup.Restore(ctx, data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Restored %d expenses from %s.\n", len(a.store.Ledger.List()), args[0])
	return nil
}

func (a *app) reset(ctx context.Context, args []string) error {
	fs := newFlagSet("reset", a.out)
	yes := fs.Bool("yes", false, "confirm wiping expenses, budget and categories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return usageErr("reset wipes all data; pass -yes to confirm")
	}
	if err := a.store.Backup.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All data reset to defaults.")
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErr("export needs a format: csv, xlsx or sheets")
	}
	format := args[0]

	fs := newFlagSet("export "+format, a.out)
	path := fs.String("o", "", "output file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	items := a.store.Ledger.List()
	opts := export.Options{DateLayout: a.dateLayout}
	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := export.WriteCSV(&buf, items, opts); err != nil {
			return err
		}
		return a.writeFile(*path, export.FileName("data", a.now()), buf.Bytes())
	case "xlsx":
		if err := export.WriteXLSX(&buf, items, opts); err != nil {
			return err
		}
		return a.writeFile(*path, export.FileName("sheet", a.now()), buf.Bytes())
	case "sheets":
		if a.sheets == nil {
			return errors.New("sheets export is not configured")
		}
		if len(items) == 0 {
			return export.ErrNoExpenses
		}
		if err := a.sheets(ctx, items, a.dateLayout); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Pushed %d expenses to Google Sheets.\n", len(items))
		return nil
	default:
		return usageErr("unknown export format %q", format)
	}
}

func (a *app) writeFile(path, fallback string, data []byte) error {
	if path == "" {
		path = fallback
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.out, "Wrote %s.\n", path)
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pushToSheets(ctx context.Context, expenses []core.Expense, dateLayout string) error {
	cfg := export.SheetsConfigFromEnv()
	if cfg.DateLayout == "" {
		cfg.DateLayout = dateLayout
	}
	x, err := export.NewSheetsExporter(ctx, cfg)
	if err != nil {
		return err
	}
	return x.Push(ctx, expenses)
}
