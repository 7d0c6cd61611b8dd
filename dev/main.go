package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	devenv "ucdresults-backend/dev/env"
)

const headlessShellImage = "chromedp/headless-shell:latest"

func cmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	slog.Info("running", "cmd", cmd.String())
	return cmd.Run()
}

// writeTestConfig writes an empty live test config unless one already exists.
func writeTestConfig(remoteUrl string) error {
	path := filepath.Join("dev", ".state", "ucd_config.json5")
	_, err := os.Stat(path)
	if err == nil {
		slog.Info("keeping existing test config", "path", path)
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}

	contents, err := json.MarshalIndent(devenv.UCDTestConfig{RemoteUrl: remoteUrl}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0600)
}

func create(recreate, chrome bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll("dev/.state", 0777)
	if err != nil && !os.IsExist(err) {
		return err
	}

	remoteUrl := ""
	if chrome {
		err = cmd("docker", "run", "-d", "--rm", "--name", "ucdresults-chrome", "-p", "9222:9222", headlessShellImage)
		if err != nil {
			return err
		}
		remoteUrl = "ws://127.0.0.1:9222"
	}

	err = writeTestConfig(remoteUrl)
	if err != nil {
		return err
	}

	path, err := devenv.GetStateFilePath("ucd_config.json5")
	if err != nil {
		return err
	}
	fmt.Printf("fill in your portal credentials at %s to run the live portal tests.\n", path)
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	chrome := flag.Bool("chrome", false, "start a headless chrome container and point the test config at it")
	flag.Parse()

	err := create(*recreate, *chrome)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created sucessfully!")
}
