package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/docclient"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/explorer"
	"github.com/starford/facdocs/internal/models"
)

const defaultServer = "http://localhost:8080"

type docsEnv struct {
	session explorer.Session
	creds   explorer.Credentials
	client  *docclient.Client
}

func openDocs(cmd *cli.Command) (*docsEnv, error) {
	path := cmd.String("session")
	if path == "" {
		p, err := explorer.DefaultSessionPath()
		if err != nil {
			return nil, fmt.Errorf("session path: %w", err)
		}
		path = p
	}
	env := &docsEnv{session: explorer.Session{Path: path}}
	creds, err := env.session.Load()
	if err != nil {
		return nil, err
	}
	if s := cmd.String("server"); s != "" {
		creds.Server = s
	}
	if creds.Server == "" {
		creds.Server = defaultServer
	}
	if t := cmd.String("token"); t != "" {
		creds.Token = t
	}
	env.creds = creds
	env.client = docclient.New(creds.Server, docclient.WithToken(creds.Token))
	return env, nil
}

// docsAction opens the client and turns authentication failures into a
// cleared session and a login hint.
func docsAction(fn func(ctx context.Context, cmd *cli.Command, env *docsEnv) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		env, err := openDocs(cmd)
		if err != nil {
			return err
		}
		err = fn(ctx, cmd, env)
		if errors.Is(err, apperr.ErrUnauthorized) || errors.Is(err, explorer.ErrLoginRequired) {
			if clearErr := env.session.Clear(); clearErr != nil {
				return fmt.Errorf("%w (clear session: %v)", err, clearErr)
			}
			return fmt.Errorf("%w: run `facdocs docs login`", explorer.ErrLoginRequired)
		}
		return err
	}
}

func needArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
	}
	return nil
}

func parentFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "parent",
		Aliases: []string{"p"},
		Usage:   "Parent folder id",
		Value:   models.RootID,
	}
}

func docsCommand() *cli.Command {
	return &cli.Command{
		Name:  "docs",
		Usage: "Browse and edit the document tree of a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Server base URL (default: the one saved at login, else " + defaultServer + ")",
				Sources: cli.EnvVars("FACDOCS_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token, overriding the saved session",
				Sources: cli.EnvVars("FACDOCS_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session file (default: user config dir)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with the admin password and save the session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Sources: cli.EnvVars("FACDOCS_PASSWORD")},
				},
				Action: docsAction(login),
			},
			{
				Name:   "logout",
				Usage:  "Forget the saved token",
				Action: docsAction(func(_ context.Context, _ *cli.Command, env *docsEnv) error { return env.session.Clear() }),
			},
			{
				Name:      "ls",
				Usage:     "List a folder",
				ArgsUsage: "[folder-id]",
				Action:    docsAction(list),
			},
			{
				Name:   "tree",
				Usage:  "Print the top of the folder tree",
				Action: docsAction(printTree),
			},
			{
				Name:      "mkdir",
				Usage:     "Create a folder",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{parentFlag()},
				Action:    docsAction(mkdir),
			},
			{
				Name:      "link",
				Usage:     "Create a link item",
				ArgsUsage: "<name> <url>",
				Flags:     []cli.Flag{parentFlag()},
				Action:    docsAction(link),
			},
			{
				Name:      "upload",
				Usage:     "Upload a file and create its item",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					parentFlag(),
					&cli.StringFlag{Name: "facility", Aliases: []string{"f"}, Usage: "Facility id", Value: doctree.UncategorizedContext},
				},
				Action: docsAction(upload),
			},
			{
				Name:      "mv",
				Usage:     "Move an item into another folder",
				ArgsUsage: "<id> <new-parent-id>",
				Action: docsAction(func(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
					if err := needArgs(cmd, 2); err != nil {
						return err
					}
					n, err := env.client.Move(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
					if err != nil {
						return err
					}
					return printNodes(os.Stdout, []models.Node{*n})
				}),
			},
			{
				Name:      "rename",
				Usage:     "Rename an item",
				ArgsUsage: "<id> <name>",
				Action: docsAction(func(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
					if err := needArgs(cmd, 2); err != nil {
						return err
					}
					name := strings.Join(cmd.Args().Slice()[1:], " ")
					n, err := env.client.Rename(ctx, cmd.Args().Get(0), name)
					if err != nil {
						return err
					}
					return printNodes(os.Stdout, []models.Node{*n})
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete an item and everything below it",
				ArgsUsage: "<id>",
				Action: docsAction(func(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
					if err := needArgs(cmd, 1); err != nil {
						return err
					}
					res, err := env.client.Delete(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("deleted %d item(s)", res.Deleted)
					if res.BlobFailures > 0 {
						fmt.Printf(", %d stored file(s) could not be removed", res.BlobFailures)
					}
					fmt.Println()
					return nil
				}),
			},
			{
				Name:      "url",
				Usage:     "Print a signed download link for a file",
				ArgsUsage: "<id>",
				Action: docsAction(func(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
					if err := needArgs(cmd, 1); err != nil {
						return err
					}
					u, err := env.client.DownloadURL(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(u.URL)
					return nil
				}),
			},
			{
				Name:  "shell",
				Usage: "Interactive explorer",
				Action: docsAction(func(ctx context.Context, _ *cli.Command, env *docsEnv) error {
					c := explorer.NewController(env.client, explorer.WithCredentials(env.session))
					return explorer.RunShell(ctx, c, os.Stdin, os.Stdout)
				}),
			},
		},
	}
}

func login(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
	password := cmd.String("password")
	if password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	token, err := env.client.Login(ctx, password)
	if err != nil {
		return err
	}
	env.creds.Token = token
	if err := env.session.Save(env.creds); err != nil {
		return err
	}
	fmt.Printf("logged in to %s\n", env.creds.Server)
	return nil
}

func list(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
	parent := cmd.Args().First()
	if parent == "" {
		parent = models.RootID
	}
	items, err := env.client.Children(ctx, parent)
	if err != nil {
		return err
	}
	return printNodes(os.Stdout, items)
}

func printTree(ctx context.Context, _ *cli.Command, env *docsEnv) error {
	t := explorer.NewTree(env.client)
	if err := t.Init(ctx); err != nil {
		return err
	}
	fmt.Print(t.Render(""))
	return nil
}

func mkdir(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
	if err := needArgs(cmd, 1); err != nil {
		return err
	}
	n, err := env.client.Create(ctx, doctree.CreateInput{
		Name:     strings.Join(cmd.Args().Slice(), " "),
		Type:     models.TypeFolder,
		ParentID: cmd.String("parent"),
	})
	if err != nil {
		return err
	}
	return printNodes(os.Stdout, []models.Node{*n})
}

func link(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
	if err := needArgs(cmd, 2); err != nil {
		return err
	}
	n, err := env.client.Create(ctx, doctree.CreateInput{
		Name:     cmd.Args().Get(0),
		Type:     models.TypeLink,
		ParentID: cmd.String("parent"),
		URL:      cmd.Args().Get(1),
	})
	if err != nil {
		return err
	}
	return printNodes(os.Stdout, []models.Node{*n})
}

func upload(ctx context.Context, cmd *cli.Command, env *docsEnv) error {
	if err := needArgs(cmd, 1); err != nil {
		return err
	}
	path := cmd.Args().First()
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := env.client.Upload(ctx, cmd.String("facility"), cmd.String("parent"), filepath.Base(path), f)
	if err != nil {
		return err
	}
	return printNodes(os.Stdout, []models.Node{*n})
}

func printNodes(out io.Writer, nodes []models.Node) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tSIZE\tTAGS")
	for _, n := range nodes {
		size := ""
		if n.Type == models.TypeFile {
			size = fmt.Sprint(n.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Type, n.Name, size, strings.Join(n.Tags, ","))
	}
	return tw.Flush()
}
