package explorer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/starford/facdocs/internal/models"
)

const shellHelp = `commands:
  ls                      list the current folder
  cd <name|id|..|/>       open a folder
  back, forward           walk the history
  pwd                     show the breadcrumb trail
  sort <name|size|modifiedAt>
  filter <folder|file|link|all>
  tree                    show the folder tree
  expand <name|id>, collapse <name|id>
  mkdir <name>            create a folder here
  mv <item> <folder|..|/> move an item
  rm <item>               delete an item (folders recursively)
  url <file>              print a signed download link
  quit
`

// RunShell reads explorer commands from in until EOF, quit, or a login
// failure, which is returned as ErrLoginRequired.
func RunShell(ctx context.Context, c *Controller, in io.Reader, out io.Writer) error {
	if err := c.Init(ctx); err != nil {
		if errors.Is(err, ErrLoginRequired) {
			return err
		}
		fmt.Fprintln(out, "error:", c.State().Message)
	}
	printListing(out, c)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s> ", trail(c.State().Crumbs))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		quit, err := runCommand(ctx, c, out, fields[0], fields[1:])
		if errors.Is(err, ErrLoginRequired) {
			return err
		}
		if err != nil {
			fmt.Fprintln(out, "error:", c.State().Message)
		}
		if quit {
			return nil
		}
	}
}

func runCommand(ctx context.Context, c *Controller, out io.Writer, cmd string, args []string) (bool, error) {
	need := func(n int) error {
		if len(args) < n {
			c.Notify("usage: " + cmd + " needs an argument, see help")
			return errUsage
		}
		return nil
	}

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprint(out, shellHelp)
	case "ls":
		printListing(out, c)
	case "pwd":
		fmt.Fprintln(out, trail(c.State().Crumbs))
	case "cd":
		if err := need(1); err != nil {
			return false, err
		}
		id := resolve(c.State(), strings.Join(args, " "))
		if n, ok := lookup(c.State(), id); ok && !n.IsFolder() {
			c.Notify(n.Name + " is not a folder")
			return false, errUsage
		}
		if err := c.Navigate(ctx, id); err != nil {
			return false, err
		}
		printListing(out, c)
	case "back":
		if err := c.Back(ctx); err != nil {
			return false, err
		}
		printListing(out, c)
	case "forward":
		if err := c.Forward(ctx); err != nil {
			return false, err
		}
		printListing(out, c)
	case "sort":
		if err := need(1); err != nil {
			return false, err
		}
		key := SortKey(args[0])
		if !key.Valid() {
			c.Notify("unknown sort column " + args[0])
			return false, errUsage
		}
		c.ToggleSort(key)
		printListing(out, c)
	case "filter":
		if err := need(1); err != nil {
			return false, err
		}
		t := models.NodeType(args[0])
		if args[0] == "all" {
			t = ""
		} else if !t.Valid() {
			c.Notify("unknown type " + args[0])
			return false, errUsage
		}
		c.SetFilter(t)
		printListing(out, c)
	case "tree":
		fmt.Fprint(out, c.Tree().Render(c.State().CurrentFolderID))
	case "expand":
		if err := need(1); err != nil {
			return false, err
		}
		if err := c.Tree().Expand(ctx, resolve(c.State(), strings.Join(args, " "))); err != nil {
			return false, c.report(err)
		}
		fmt.Fprint(out, c.Tree().Render(c.State().CurrentFolderID))
	case "collapse":
		if err := need(1); err != nil {
			return false, err
		}
		c.Tree().Collapse(resolve(c.State(), strings.Join(args, " ")))
		fmt.Fprint(out, c.Tree().Render(c.State().CurrentFolderID))
	case "mkdir":
		if err := need(1); err != nil {
			return false, err
		}
		n, err := c.Mkdir(ctx, strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "created %s (%s)\n", n.Name, n.ID)
	case "mv":
		if err := need(2); err != nil {
			return false, err
		}
		s := c.State()
		if err := c.Move(ctx, resolve(s, args[0]), resolve(s, args[1])); err != nil {
			return false, err
		}
		printListing(out, c)
	case "rm":
		if err := need(1); err != nil {
			return false, err
		}
		res, err := c.Remove(ctx, resolve(c.State(), strings.Join(args, " ")))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "deleted %d item(s)\n", res.Deleted)
	case "url":
		if err := need(1); err != nil {
			return false, err
		}
		u, err := c.DownloadURL(ctx, resolve(c.State(), strings.Join(args, " ")))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s\nexpires %s\n", u.URL, u.ExpiresAt.Local().Format("15:04:05"))
	default:
		fmt.Fprintf(out, "unknown command %q, try help\n", cmd)
	}
	return false, nil
}

var errUsage = errors.New("usage")

// resolve maps a shell argument to an item id: "/" is the top level, ".."
// the parent folder, otherwise an item of the current folder by name, or
// the argument itself taken as an id.
func resolve(s State, arg string) string {
	switch arg {
	case "/", models.RootID:
		return models.RootID
	case "..":
		if n := len(s.Crumbs); n >= 2 {
			return s.Crumbs[n-2].ID
		}
		return models.RootID
	}
	for _, n := range s.Items {
		if n.Name == arg {
			return n.ID
		}
	}
	return arg
}

func lookup(s State, id string) (models.Node, bool) {
	for _, n := range s.Items {
		if n.ID == id {
			return n, true
		}
	}
	return models.Node{}, false
}

func trail(crumbs []Crumb) string {
	names := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		names = append(names, c.Name)
	}
	return strings.Join(names, " / ")
}

func printListing(out io.Writer, c *Controller) {
	s := c.State()
	rows := Rows(s)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tNAME\tSIZE\tMODIFIED\t(sort %s %s", s.SortBy, s.SortDirection)
	if s.FilterType != "" {
		fmt.Fprintf(tw, ", only %s", s.FilterType)
	}
	fmt.Fprintln(tw, ")")
	for _, n := range rows {
		size := ""
		if n.Type == models.TypeFile {
			size = humanSize(n.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", n.Type, n.Name, size, n.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
	if len(rows) == 0 {
		fmt.Fprintln(out, "(empty)")
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
