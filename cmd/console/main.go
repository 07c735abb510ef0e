// Package main provides a command-line console for editing StaticForge
// projects through the file service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/staticforge/console/internal/config"
	"github.com/staticforge/console/internal/editor"
	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/pkg/client"
	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/protocol"
	"github.com/staticforge/console/pkg/tree"
)

func main() {
	cfg := config.LoadConsole()

	serverURL := flag.String("server", cfg.ServerURL, "File service URL")
	token := flag.String("token", cfg.Token, "Bearer token")
	project := flag.String("project", cfg.Project, "Project ID")
	autosave := flag.Duration("autosave", cfg.AutosaveDelay, "Autosave delay")
	timeout := flag.Duration("timeout", cfg.Timeout, "Request timeout")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	at := flag.String("at", "", "Select this path before running the command")
	gap := flag.Bool("gap", false, "mv: drop beside the destination instead of into it")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if *project == "" {
		fmt.Fprintln(os.Stderr, "Error: -project (or CONSOLE_PROJECT) is required")
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{
		Level:      *logLevel,
		Format:     "console",
		OutputPath: "stderr",
	}); err != nil {
		logging.InitNop()
	}
	defer logging.Sync()

	session := client.NewSession(*token)
	session.OnUnauthorized(func() {
		fmt.Fprintln(os.Stderr, "Session rejected by the server; check -token or CONSOLE_TOKEN")
	})
	c := client.New(client.Config{
		BaseURL: *serverURL,
		Timeout: *timeout,
		Session: session,
	})
	files := c.Project(*project)

	ctx := context.Background()
	cmd := args[0]
	cmdArgs := args[1:]

	// init runs before the project exists, so it does not open a session.
	if cmd == "init" {
		exitOn(cmdInit(ctx, files, *project, cmdArgs))
		return
	}
	if cmd == "help" {
		printUsage()
		return
	}

	ctrl := editor.New(files, editor.Options{
		AutosaveDelay: *autosave,
		Notifier:      stdNotifier{},
		Logger:        logging.Named("editor"),
	})
	defer ctrl.Close()

	if err := ctrl.Open(ctx); err != nil {
		exitOn(err)
	}
	if *at != "" {
		exitOn(selectPath(ctx, ctrl, *at))
	}

	var err error
	switch cmd {
	case "tree", "ls":
		cmdTree(ctrl)
	case "cat":
		err = cmdCat(ctx, ctrl, cmdArgs)
	case "put":
		err = cmdPut(ctx, ctrl, cmdArgs)
	case "edit":
		err = cmdEdit(ctx, ctrl, cmdArgs)
	case "mkdir":
		err = cmdMkdir(ctx, ctrl, cmdArgs)
	case "touch":
		err = cmdTouch(ctx, ctrl, cmdArgs)
	case "upload":
		err = cmdUpload(ctx, ctrl, cmdArgs)
	case "upload-dir":
		err = cmdUploadDir(ctx, ctrl, cmdArgs)
	case "mv":
		err = cmdMove(ctx, ctrl, cmdArgs, *gap)
	case "rename":
		err = cmdRename(ctx, ctrl, cmdArgs)
	case "rm":
		err = cmdRemove(ctx, ctrl, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	exitOn(err)
}

func printUsage() {
	fmt.Println(`StaticForge Console

Usage: console [flags] <command> [args]

Flags:
  -server <url>      File service URL (default: http://localhost:8080)
  -token <token>     Bearer token
  -project <id>      Project ID
  -autosave <dur>    Autosave delay (default: 2s)
  -timeout <dur>     Request timeout (default: 30s)
  -log-level <lvl>   Log level (default: warn)
  -at <path>         Select a file or folder first; new files go there
  -gap               mv: drop beside the destination instead of into it

Commands:
  init [title]            Create the project with a default index.html
  tree, ls                Show the project tree
  cat <path>              Print a file
  put <path> [file]       Replace a file's content from a local file or stdin
  edit <path>             Edit a file in $EDITOR
  mkdir <name>            Create a folder in the target folder
  touch <name>            Create an empty file in the target folder
  upload <files...>       Upload local files to the target folder
  upload-dir <dir>        Upload a local folder, keeping its structure
  mv <src> <dest>         Move src onto dest (a folder, or beside a file)
  rename <path> <name>    Rename a file or folder
  rm <path>               Delete a file or folder
  help                    Show this help message

Examples:
  console -project blog init "My Blog"
  console -project blog tree
  console -project blog -at docs upload notes.md logo.png
  console -project blog -gap mv docs/old.html index.html
  echo "<h1>hi</h1>" | console -project blog put about.html`)
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if ae, ok := client.AsAPIError(err); ok && ae.Code == protocol.CodeInternal && ae.RequestID != "" {
		fmt.Fprintf(os.Stderr, "Request ID: %s\n", ae.RequestID)
	}
	os.Exit(1)
}

// stdNotifier prints user-facing notifications.
type stdNotifier struct{}

func (stdNotifier) Success(msg string) { fmt.Println("✓ " + msg) }
func (stdNotifier) Warning(msg string) { fmt.Println("! " + msg) }
func (stdNotifier) Error(msg string)   { fmt.Fprintln(os.Stderr, "✗ "+msg) }

func lookup(ctrl *editor.Controller, path string) (models.FileEntry, error) {
	e, ok := ctrl.Lookup(path)
	if !ok {
		return models.FileEntry{}, fmt.Errorf("no such file or folder: %s", path)
	}
	return e, nil
}

func selectPath(ctx context.Context, ctrl *editor.Controller, path string) error {
	e, err := lookup(ctrl, path)
	if err != nil {
		return err
	}
	return ctrl.Select(ctx, e)
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: console %s", usage)
	}
	return nil
}

func cmdInit(ctx context.Context, files *client.ProjectFiles, id string, args []string) error {
	title := strings.Join(args, " ")
	if err := files.Create(ctx, title); err != nil {
		return err
	}
	fmt.Printf("✓ Created project %s\n", id)
	return nil
}

func cmdTree(ctrl *editor.Controller) {
	nodes := ctrl.Tree()
	if len(nodes) == 0 {
		fmt.Println("Project is empty")
		return
	}

	selected, _ := ctrl.SelectedFile()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	printNodes(w, ctrl, nodes, selected.Path)
	w.Flush()
	fmt.Printf("\n%d entries, uploads go to %s\n", tree.CountNodes(nodes), ctrl.TargetPath())
}

// printNodes prints one row per node, skipping the children of collapsed
// folders.
func printNodes(w io.Writer, ctrl *editor.Controller, nodes []*tree.Node, selected string) {
	for _, n := range nodes {
		marker, size, current := "  ", "", ""
		expanded := n.IsFolder && ctrl.IsExpanded(n.Path)
		switch {
		case expanded:
			marker = "▾ "
		case n.IsFolder:
			marker = "▸ "
		default:
			size = formatSize(n.File.Size)
		}
		if tree.SamePath(n.Path, selected) {
			current = "*"
		}
		fmt.Fprintf(w, "%s%s%s\t%s\t%s\n", strings.Repeat("  ", n.Level), marker, n.Name, size, current)
		if expanded {
			printNodes(w, ctrl, n.Children, selected)
		}
	}
}

func cmdCat(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "cat <path>"); err != nil {
		return err
	}
	if err := selectPath(ctx, ctrl, args[0]); err != nil {
		return err
	}
	f, _ := ctrl.SelectedFile()
	fmt.Fprintf(os.Stderr, "── %s (%s)\n", f.Path, editor.LanguageFor(f.Name))
	fmt.Print(ctrl.Content())
	return nil
}

func cmdPut(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "put <path> [file]"); err != nil {
		return err
	}
	var src io.Reader = os.Stdin
	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	if err := selectPath(ctx, ctrl, args[0]); err != nil {
		return err
	}
	ctrl.Edit(string(data))
	if !ctrl.Dirty() {
		fmt.Println("No changes")
	}
	return ctrl.Flush(ctx)
}

func cmdEdit(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "edit <path>"); err != nil {
		return err
	}
	if err := selectPath(ctx, ctrl, args[0]); err != nil {
		return err
	}
	f, _ := ctrl.SelectedFile()

	tmp, err := os.CreateTemp("", "staticforge-*"+filepath.Ext(f.Name))
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(ctrl.Content()); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	editorCmd := os.Getenv("EDITOR")
	if editorCmd == "" {
		editorCmd = "vi"
	}
	run := exec.Command(editorCmd, tmp.Name())
	run.Stdin, run.Stdout, run.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := run.Run(); err != nil {
		return fmt.Errorf("run %s: %w", editorCmd, err)
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return err
	}
	ctrl.Edit(string(data))
	if !ctrl.Dirty() {
		fmt.Println("No changes")
	}
	return ctrl.Flush(ctx)
}

func cmdMkdir(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "mkdir <name>"); err != nil {
		return err
	}
	return ctrl.CreateFolder(ctx, args[0])
}

func cmdTouch(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "touch <name>"); err != nil {
		return err
	}
	return ctrl.CreateFile(ctx, args[0])
}

func cmdUpload(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "upload <files...>"); err != nil {
		return err
	}
	files := make([]models.LocalFile, 0, len(args))
	for _, p := range args {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, models.LocalFile{Name: filepath.Base(p), Data: data})
	}
	res, err := ctrl.UploadFiles(ctx, files)
	return uploadErr(res, err)
}

func cmdUploadDir(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "upload-dir <dir>"); err != nil {
		return err
	}
	root := filepath.Clean(args[0])
	base := filepath.Dir(root)

	var files []models.LocalFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, models.LocalFile{
			Name:         d.Name(),
			RelativePath: filepath.ToSlash(rel),
			Data:         data,
		})
		return nil
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("Nothing to upload")
		return nil
	}
	res, err := ctrl.UploadFolder(ctx, files)
	return uploadErr(res, err)
}

func uploadErr(res editor.UploadResult, err error) error {
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", res.Failed, res.Total())
	}
	return nil
}

func cmdMove(ctx context.Context, ctrl *editor.Controller, args []string, gap bool) error {
	if err := need(args, 2, "mv <src> <dest>"); err != nil {
		return err
	}
	src, err := lookup(ctrl, args[0])
	if err != nil {
		return err
	}
	var dest models.FileEntry
	if tree.Canonical(args[1]) == "" {
		// The root has no entry; a gap drop beside a top-level entry lands there.
		dest, gap = models.FileEntry{Path: "/", IsFolder: true}, false
	} else if dest, err = lookup(ctrl, args[1]); err != nil {
		return err
	}

	err = ctrl.Move(ctx, src, dest, gap)
	switch {
	case errors.Is(err, editor.ErrDropOnSelf), errors.Is(err, editor.ErrAlreadyInPlace):
		return nil
	}
	return err
}

func cmdRename(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 2, "rename <path> <name>"); err != nil {
		return err
	}
	e, err := lookup(ctrl, args[0])
	if err != nil {
		return err
	}
	return ctrl.Rename(ctx, e, args[1])
}

func cmdRemove(ctx context.Context, ctrl *editor.Controller, args []string) error {
	if err := need(args, 1, "rm <path>"); err != nil {
		return err
	}
	e, err := lookup(ctrl, args[0])
	if err != nil {
		return err
	}
	return ctrl.Delete(ctx, e)
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
