// mindfs hosts a Unix-style filesystem inside a single image file and
// serves file and directory commands against it, one-shot, interactive,
// or fanned out over a worker pool.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mindfs/mindfs/dispatch"
	"github.com/mindfs/mindfs/fs"
	"github.com/mindfs/mindfs/fserr"
	"github.com/mindfs/mindfs/shell"
	"github.com/mindfs/mindfs/stress"

	diskdev "github.com/mindfs/mindfs/disk"
)

func main() {
	logrus.SetOutput(os.Stderr)
	app := &cli.App{
		Name:            "mindfs",
		Usage:           "Unix-style filesystem hosted in a single image file",
		ArgsUsage:       "<image_path> <command> [args...]",
		HideHelpCommand: true,
		Description: `Commands:
   create <size_mb>          create a new image file
   format                    format the image
   run                       run the interactive shell
   stress [options]          run the storage stress test
   multithreaded [--threads T] <cmd>[; <cmd>]*
                             execute commands through the worker pool
   <cmd> <args...>           execute a single command`,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) < 2 {
		cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	imagePath := args[0]
	switch args[1] {
	case "create":
		return runCreate(imagePath, args[2:])
	case "format":
		return runFormat(imagePath)
	case "stress":
		return runStress(imagePath, args[2:])
	case "multithreaded":
		return runMultithreaded(imagePath, args[2:])
	default:
		return runShell(imagePath, args[1:])
	}
}

func runCreate(imagePath string, args []string) error {
	if len(args) < 1 {
		fserr.New(fserr.InvalidSyntax, "create requires a size in MB")
		return cli.Exit("", 1)
	}
	sizeMB, err := strconv.Atoi(args[0])
	if err != nil {
		fserr.Newf(fserr.InvalidArgument, "invalid image size: %s", args[0])
		return cli.Exit("", 1)
	}
	dev := diskdev.NewDevice()
	if err := dev.Create(imagePath, sizeMB); err != nil {
		return cli.Exit("", 1)
	}
	fmt.Printf("Image created successfully: %s (%dMB)\n", imagePath, sizeMB)
	return nil
}

func runFormat(imagePath string) error {
	dev := diskdev.NewDevice()
	if err := dev.Open(imagePath); err != nil {
		return cli.Exit("", 1)
	}
	defer dev.Close()
	if err := dev.Format(); err != nil {
		return cli.Exit("", 1)
	}
	fmt.Println("Image formatted successfully")
	return nil
}

func mount(imagePath string) (*fs.Filesystem, error) {
	fsys := fs.New()
	if err := fsys.Mount(imagePath); err != nil {
		return nil, err
	}
	return fsys, nil
}

// runShell handles both `run` (interactive) and one-shot commands.
func runShell(imagePath string, args []string) error {
	fsys, err := mount(imagePath)
	if err != nil {
		return cli.Exit("", 1)
	}
	defer fsys.Unmount()
	sh := shell.New(fsys)
	if args[0] == "run" {
		sh.Run()
		return nil
	}
	if sh.ExecuteLine(strings.Join(args, " ")) != 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func runStress(imagePath string, args []string) error {
	cfg, err := stress.ParseArgs(args)
	if err != nil {
		return cli.Exit("", 1)
	}
	fsys, err := mount(imagePath)
	if err != nil {
		return cli.Exit("", 1)
	}
	defer fsys.Unmount()
	if err := stress.Run(fsys, cfg); err != nil {
		logrus.Error("[Stress] Test finished with errors")
		return cli.Exit("", 1)
	}
	fmt.Println("[Stress] Test finished successfully")
	return nil
}

func runMultithreaded(imagePath string, args []string) error {
	threads := 4
	if len(args) >= 2 && args[0] == "--threads" {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fserr.Newf(fserr.InvalidArgument, "invalid thread count: %s", args[1])
			return cli.Exit("", 1)
		}
		threads = n
		args = args[2:]
	}
	if len(args) == 0 {
		fserr.New(fserr.InvalidSyntax, "multithreaded mode requires at least one command")
		return cli.Exit("", 1)
	}

	fsys, err := mount(imagePath)
	if err != nil {
		return cli.Exit("", 1)
	}
	defer fsys.Unmount()

	sh := shell.New(fsys)
	d := dispatch.New(sh.ExecuteLine, threads)
	defer d.Close()

	var futures []*dispatch.Future
	for _, line := range strings.Split(strings.Join(args, " "), ";") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		futures = append(futures, d.ExecuteAsync(line))
	}
	status := 0
	for _, f := range futures {
		if f.Wait() != 0 {
			status = 1
		}
	}
	if status != 0 {
		return cli.Exit("", 1)
	}
	return nil
}
