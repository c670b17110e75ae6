package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"github.com/nikbrunner/gorg/internal/app"
	"github.com/nikbrunner/gorg/internal/culler"
	"github.com/nikbrunner/gorg/internal/exporter"
	"github.com/nikbrunner/gorg/internal/importer"
	"github.com/nikbrunner/gorg/internal/logger"
	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/picker"
	"github.com/nikbrunner/gorg/internal/relocate"
	"github.com/nikbrunner/gorg/internal/resolver"
	"github.com/nikbrunner/gorg/internal/search"
	"github.com/nikbrunner/gorg/internal/storage"
	"github.com/nikbrunner/gorg/internal/watcher"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches a command. Commands return instead of exiting so that
// deferred closes always run.
func run(args []string) error {
	if len(args) == 0 {
		return runFolders(nil)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "help", "--help", "-h":
		printHelp()
		return nil
	case "folders":
		return runFolders(args)
	case "ls":
		return runList(args)
	case "mkdir":
		need(args, 1, "gorg mkdir <name>")
		return runMkdir(args[0])
	case "rename":
		need(args, 2, "gorg rename <old> <new>")
		return runRename(args[0], args[1])
	case "rm":
		need(args, 1, "gorg rm <folder>")
		return runRemoveFolder(args[0])
	case "rm-photos":
		need(args, 1, "gorg rm-photos <id>...")
		return runRemovePhotos(args)
	case "cp-folder", "mv-folder":
		need(args, 2, "gorg "+cmd+" <folder> <destination>")
		return runRelocateFolder(args[0], args[1], cmd == "mv-folder")
	case "cp-photos", "mv-photos":
		need(args, 2, "gorg "+cmd+" <folder> <destination>")
		return runRelocatePhotos(args[0], args[1], cmd == "mv-photos")
	case "cp", "mv":
		need(args, 1, "gorg "+cmd+" <destination> [id...]")
		return runRelocateSelected(args[0], args[1:], cmd == "mv")
	case "capture":
		need(args, 2, "gorg capture <folder> <file>")
		return runCapture(args[0], args[1])
	case "import":
		need(args, 2, "gorg import <folder> <file>...")
		return runImport(args[0], args[1:])
	case "tag":
		need(args, 1, "gorg tag <id> [tags]")
		return runTag(args[0], strings.Join(args[1:], " "))
	case "fav", "unfav":
		need(args, 1, "gorg "+cmd+" <id>...")
		return runFavorite(args, cmd == "fav")
	case "favorites":
		return runFavorites()
	case "search":
		need(args, 1, "gorg search [--fuzzy] <query>")
		return runSearch(args)
	case "pick":
		return runPick(args)
	case "details":
		need(args, 1, "gorg details <id>")
		return runDetails(args[0])
	case "share":
		return runShare(args)
	case "pdf":
		return runPDF(args)
	case "export-html":
		var outputPath string
		if len(args) > 0 {
			outputPath = args[0]
		}
		return runExportHTML(outputPath)
	case "import-html":
		need(args, 1, "gorg import-html <file.html>")
		return runImportHTML(args[0])
	case "cull":
		_, dryRun := popFlag(args, "--dry-run")
		return runCull(dryRun)
	case "watch":
		return runWatch()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(1)
	}
	return nil
}

func printHelp() {
	help := `gorg - local photo organizer

Usage:
  gorg                                 List folders
  gorg folders [--top]                 List folders with photo counts
  gorg ls <folder> [--top]             List the photos of a folder
  gorg mkdir <name>                    Create an empty folder
  gorg rename <old> <new>              Rename a folder
  gorg rm <folder>                     Delete a folder and its photos
  gorg rm-photos <id>...               Delete photos
  gorg cp-folder <folder> <dest>       Copy a folder into another
  gorg mv-folder <folder> <dest>       Move a folder into another
  gorg cp-photos <folder> <dest>       Copy the top-level photos of a folder
  gorg mv-photos <folder> <dest>       Move the top-level photos of a folder
  gorg cp <dest> [id...]               Copy photos (picker when no ids)
  gorg mv <dest> [id...]               Move photos (picker when no ids)
  gorg capture <folder> <file>         Add a fresh capture, deleting <file>
  gorg import <folder> <file>...       Add copies of image files
  gorg tag <id> [tags]                 Set the tags of a photo
  gorg fav|unfav <id>...               Mark or unmark favorites
  gorg favorites                       List favorite photos
  gorg search [--fuzzy] <query>        Search tags, names and dates
  gorg pick [folder]                   Choose photos, print their ids
  gorg details <id>                    Show photo details
  gorg share [id...]                   Copy ids to the clipboard
  gorg pdf [--name <name>] [id...]     Export photos to PDF
  gorg export-html [path]              Export an HTML album
  gorg import-html <file>              Restore tags and favorites from an album
  gorg cull [--dry-run]                Forget records of photos that are gone
  gorg watch                           Re-list folders when files change
  gorg help                            Show this help

Picker Keybindings:
  j/k         Move down/up
  g/G         Jump to top/bottom
  space/x     Mark photo
  Enter       Select
  q/Esc       Cancel

Configuration:
  ~/.config/gorg/config.json (override with $GORG_CONFIG)
`
	fmt.Print(help)
}

// need exits with usage when args has fewer than n entries.
func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}
}

// popFlag removes a boolean flag from args.
func popFlag(args []string, name string) ([]string, bool) {
	rest := make([]string, 0, len(args))
	found := false
	for _, a := range args {
		if a == name {
			found = true
			continue
		}
		rest = append(rest, a)
	}
	return rest, found
}

// popValue removes "name value" from args.
func popValue(args []string, name string) ([]string, string) {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			rest := append(append([]string{}, args[:i]...), args[i+2:]...)
			return rest, args[i+1]
		}
	}
	return args, ""
}

// errRowsFailed marks a batch that finished with failed rows. The rows
// are already printed.
var errRowsFailed = errors.New("some photos failed")

// loadApp reads the configuration and builds the services.
func loadApp() (*app.App, error) {
	configPath, err := storage.DefaultConfigFilePath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	cfg, err := storage.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(logger.Config{
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing library: %v\n", err)
	}
}

// report prints a batch outcome and returns errRowsFailed when rows failed.
func report(verb string, res relocate.Result) error {
	fmt.Printf("%s %d photos\n", verb, res.Relocated)
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "  failed: %v\n", f)
	}
	if !res.OK() {
		return errRowsFailed
	}
	return nil
}

func runFolders(args []string) error {
	_, top := popFlag(args, "--top")
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	folders, err := a.Resolver.Folders(resolver.ListOptions{TopLevelOnly: top})
	if err != nil {
		return fmt.Errorf("listing folders: %w", err)
	}
	if len(folders) == 0 {
		fmt.Println("No folders yet. Create one with: gorg mkdir <name>")
		return nil
	}
	for _, f := range folders {
		fmt.Printf("%-30s %d\n", f.Name, f.PhotoCount)
	}
	return nil
}

func runList(args []string) error {
	args, top := popFlag(args, "--top")
	need(args, 1, "gorg ls <folder> [--top]")
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	photos, err := a.Resolver.Photos(args[0], resolver.ListOptions{TopLevelOnly: top})
	if err != nil {
		return fmt.Errorf("listing photos: %w", err)
	}
	printPhotos(photos)
	return nil
}

func printPhotos(photos []model.Photo) {
	for _, p := range photos {
		fav := " "
		if p.Favorite {
			fav = "*"
		}
		fmt.Printf("%s %s  %-10s  %s\n", fav, p.ID, p.Date, p.Tags)
	}
}

func runMkdir(name string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	name, err = a.Engine.CreateFolder(name)
	if err != nil {
		return fmt.Errorf("creating folder: %w", err)
	}
	fmt.Printf("Created %s\n", name)
	return nil
}

func runRename(oldName, newName string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	newName, res, err := a.Engine.RenameFolder(oldName, newName)
	if err != nil {
		return fmt.Errorf("renaming folder: %w", err)
	}
	fmt.Printf("Renamed %s to %s\n", oldName, newName)
	return report("Moved", res)
}

func runRemoveFolder(name string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	res, err := a.Engine.DeleteFolder(name)
	if err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	return report("Deleted", res)
}

func runRemovePhotos(ids []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	return report("Deleted", a.Engine.DeletePhotos(ids))
}

func runRelocateFolder(src, dest string, move bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	op, verb := a.Engine.CopyFolder, "Copied"
	if move {
		op, verb = a.Engine.MoveFolder, "Moved"
	}
	res, err := op(src, dest)
	if err != nil {
		return err
	}
	return report(verb, res)
}

func runRelocatePhotos(src, dest string, move bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	op, verb := a.Engine.CopyPhotos, "Copied"
	if move {
		op, verb = a.Engine.MovePhotos, "Moved"
	}
	res, err := op(src, dest)
	if err != nil {
		return err
	}
	return report(verb, res)
}

func runRelocateSelected(dest string, ids []string, move bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if len(ids) == 0 {
		ids, err = pickPhotos(a, "")
		if err != nil || len(ids) == 0 {
			return err
		}
	}

	op, verb := a.Engine.CopyTo, "Copied"
	if move {
		op, verb = a.Engine.MoveTo, "Moved"
	}
	res, err := op(ids, dest)
	if err != nil {
		return err
	}
	return report(verb, res)
}

func runCapture(folder, path string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	id, err := a.Engine.Capture(folder, path)
	if err != nil {
		return fmt.Errorf("saving capture: %w", err)
	}
	fmt.Println(id)
	return nil
}

func runImport(folder string, paths []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	failed := 0
	for _, path := range paths {
		id, err := a.Engine.Import(folder, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Println(id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files not imported", failed, len(paths))
	}
	return nil
}

func runTag(id, tags string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Photos.SetTags(id, tags); err != nil {
		return fmt.Errorf("saving tags: %w", err)
	}
	return nil
}

func runFavorite(ids []string, favorite bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	for _, id := range ids {
		if err := a.Photos.SetFavorite(id, favorite); err != nil {
			return fmt.Errorf("saving favorite: %w", err)
		}
	}
	return nil
}

func loadLibrary(a *app.App) (*model.Library, error) {
	lib, err := a.Resolver.Library()
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	return lib, nil
}

func runFavorites() error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	lib, err := loadLibrary(a)
	if err != nil {
		return err
	}
	printPhotos(search.Favorites(lib.Photos))
	return nil
}

// runSearch filters by substring, or ranks fuzzily and lets the user pick
// when more than one photo matches.
func runSearch(args []string) error {
	args, fuzzy := popFlag(args, "--fuzzy")
	query := strings.Join(args, " ")
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	lib, err := loadLibrary(a)
	if err != nil {
		return err
	}
	if !fuzzy {
		printPhotos(search.Filter(lib.Photos, query))
		return nil
	}

	results := search.Fuzzy(lib, query)
	switch len(results) {
	case 0:
		fmt.Printf("No photos found for '%s'\n", query)
	case 1:
		fmt.Println(results[0].Photo.ID)
	default:
		ids, err := picker.Run(picker.NewMulti(fmt.Sprintf("Search: %s", query), picker.ResultItems(results)))
		if err != nil {
			return fmt.Errorf("running picker: %w", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	}
	return nil
}

// pickPhotos lets the user mark photos of folder, or of the whole library
// when folder is blank.
func pickPhotos(a *app.App, folder string) ([]string, error) {
	var photos []model.Photo
	title := "Photos"
	if folder == "" {
		lib, err := loadLibrary(a)
		if err != nil {
			return nil, err
		}
		photos = lib.Photos
	} else {
		var err error
		photos, err = a.Resolver.Photos(folder, resolver.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing photos: %w", err)
		}
		title = folder
	}

	ids, err := picker.Run(picker.NewMulti(title, picker.PhotoItems(photos)))
	if err != nil {
		return nil, fmt.Errorf("running picker: %w", err)
	}
	return ids, nil
}

func runPick(args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	folder := ""
	if len(args) > 0 {
		folder = args[0]
	} else {
		folders, err := a.Resolver.Folders(resolver.ListOptions{})
		if err != nil {
			return fmt.Errorf("listing folders: %w", err)
		}
		chosen, err := picker.Run(picker.New("Folders", picker.FolderItems(folders)))
		if err != nil {
			return fmt.Errorf("running picker: %w", err)
		}
		if len(chosen) == 0 {
			return nil
		}
		folder = chosen[0]
	}

	ids, err := pickPhotos(a, folder)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runDetails(id string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	d, err := a.Resolver.Details(id)
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	fmt.Printf("Name:       %s\n", d.Name)
	fmt.Printf("Folder:     %s\n", d.Folder)
	fmt.Printf("Type:       %s\n", d.MimeType)
	fmt.Printf("Size:       %s\n", d.SizeString())
	if res := d.Resolution(); res != "" {
		fmt.Printf("Resolution: %s\n", res)
	}
	if !d.DateTaken.IsZero() {
		fmt.Printf("Taken:      %s\n", d.DateTaken.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Tags:       %s\n", d.Tags)
	fmt.Printf("Favorite:   %t\n", d.Favorite)
	fmt.Printf("Identifier: %s\n", d.ID)
	return nil
}

func runShare(ids []string) error {
	if len(ids) == 0 {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ids, err = pickPhotos(a, "")
		closeApp(a)
		if err != nil || len(ids) == 0 {
			return err
		}
	}

	if err := clipboard.WriteAll(strings.Join(ids, "\n")); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	fmt.Printf("Copied %d identifiers to clipboard\n", len(ids))
	return nil
}

func runPDF(args []string) error {
	ids, name := popValue(args, "--name")
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if len(ids) == 0 {
		ids, err = pickPhotos(a, "")
		if err != nil {
			return err
		}
	}

	path, err := exporter.ExportPDF(a.Config.ExportDir, name, ids, a.Resolver, a.Log, time.Now())
	if errors.Is(err, exporter.ErrNothingToExport) {
		fmt.Println("No photos selected")
		return nil
	}
	if err != nil {
		return fmt.Errorf("exporting PDF: %w", err)
	}
	fmt.Printf("Exported %d photos to %s\n", len(ids), path)
	return nil
}

func runExportHTML(outputPath string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if outputPath == "" {
		if err := os.MkdirAll(a.Config.ExportDir, 0755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
		outputPath = exporter.DefaultAlbumPath(a.Config.ExportDir, time.Now())
	}

	lib, err := loadLibrary(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(exporter.ExportHTML(lib)), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	fmt.Printf("Exported %d photos, %d folders to %s\n", len(lib.Photos), len(lib.Folders), outputPath)
	return nil
}

func runImportHTML(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	photos, err := importer.ParseHTMLAlbum(file)
	if err != nil {
		return fmt.Errorf("parsing HTML: %w", err)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	merged, err := importer.Merge(photos, a.Photos)
	if err != nil {
		return fmt.Errorf("merging album: %w", err)
	}
	fmt.Printf("Restored %d photos\n", merged)
	return nil
}

// runCull checks every metadata record against the library and removes
// the records whose photo no longer exists.
func runCull(dryRun bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	records := a.Photos.All()
	if len(records) == 0 {
		fmt.Println("No records to check")
		return nil
	}

	results := culler.Check(records, a.Resolver, 8, func(completed, total int) {
		fmt.Fprintf(os.Stderr, "\rChecking %d/%d", completed, total)
	})
	fmt.Fprintln(os.Stderr)

	missing := culler.Filter(results, culler.Missing)
	for _, r := range missing {
		fmt.Printf("missing     %s\n", r.Photo.ID)
	}
	for _, r := range culler.Filter(results, culler.Unreadable) {
		fmt.Printf("unreadable  %s (%s)\n", r.Photo.ID, r.Error)
	}
	if dryRun || len(missing) == 0 {
		fmt.Printf("%d of %d records point at missing photos\n", len(missing), len(records))
		return nil
	}

	removed, err := culler.Cull(results, a.Photos)
	if err != nil {
		return fmt.Errorf("removing records: %w", err)
	}
	fmt.Printf("Removed %d records\n", removed)
	return nil
}

func runWatch() error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	root := a.Config.LegacyRoot()
	if !a.Config.Legacy() {
		root = a.Config.MediaBlobDir()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", root, err)
	}

	w, err := watcher.New(watcher.Options{IgnoreHidden: true, Logger: a.Log})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", filepath.Clean(root))
	return w.Run(ctx, func(paths []string) {
		a.Log.Info("library changed", "paths", len(paths))
		folders, err := a.Resolver.Folders(resolver.ListOptions{})
		if err != nil {
			a.Log.Error("failed to list folders", "error", err)
			return
		}
		for _, f := range folders {
			fmt.Printf("%-30s %d\n", f.Name, f.PhotoCount)
		}
		fmt.Println()
	})
}
