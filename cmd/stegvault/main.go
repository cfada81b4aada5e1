// Command stegvault backs up a secret into an image and restores it.
//
//	stegvault backup  -in cover.png -out stego.png -secret-file secret.txt
//	stegvault restore -in stego.png [-out secret.txt]
//	stegvault capacity -in cover.jpg
//	stegvault detect  -in carrier.bin
//
// The passphrase is read from the STEGVAULT_PASSPHRASE environment variable
// or prompted for on the terminal with echo disabled.
package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/stegvault/stegvault"
)

var logger = logrus.New()

func main() {
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "backup":
		err = runBackup(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	case "capacity":
		err = runCapacity(os.Args[2:])
	case "detect":
		err = runDetect(os.Args[2:])
	case "vault":
		err = runVault(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: stegvault <backup|restore|capacity|detect|vault> [flags]")
}

func kdfFlags(fs *flag.FlagSet) *stegvault.Params {
	params := stegvault.DefaultParams()
	fs.Func("kdf-time", "Argon2id time cost (passes)", func(v string) error {
		_, err := fmt.Sscanf(v, "%d", &params.Time)
		return err
	})
	fs.Func("kdf-memory", "Argon2id memory cost in KiB", func(v string) error {
		_, err := fmt.Sscanf(v, "%d", &params.MemoryKiB)
		return err
	})
	fs.Func("kdf-threads", "Argon2id parallelism", func(v string) error {
		_, err := fmt.Sscanf(v, "%d", &params.Threads)
		return err
	})
	return &params
}

func runBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	in := fs.String("in", "", "cover image (PNG or JPEG)")
	out := fs.String("out", "", "output stego image")
	secret := fs.String("secret", "", "secret string (prefer -secret-file)")
	secretFile := fs.String("secret-file", "", "file whose contents become the secret")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("backup requires -in and -out")
	}
	data, err := secretBytes(*secret, *secretFile)
	if err != nil {
		return err
	}
	carrier, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	passphrase, err := readPassphrase(true)
	if err != nil {
		return err
	}

	stegoImg, err := stegvault.Backup(carrier, data, passphrase, *params)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, stegoImg, 0o600); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"carrier": *in,
		"output":  *out,
		"bytes":   len(data),
	}).Info("secret embedded")
	return nil
}

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	in := fs.String("in", "", "stego image")
	out := fs.String("out", "", "write secret to file instead of stdout")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("restore requires -in")
	}
	carrier, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	passphrase, err := readPassphrase(false)
	if err != nil {
		return err
	}

	secret, err := stegvault.Restore(carrier, passphrase, *params)
	if err != nil {
		return err
	}

	if *out != "" {
		return os.WriteFile(*out, secret, 0o600)
	}
	_, err = os.Stdout.Write(secret)
	return err
}

func runCapacity(args []string) error {
	fs := flag.NewFlagSet("capacity", flag.ExitOnError)
	in := fs.String("in", "", "carrier image")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("capacity requires -in")
	}
	carrier, err := os.ReadFile(*in)
	if err != nil {
		return err
	}

	format, err := stegvault.DetectFormat(carrier)
	if err != nil {
		return err
	}
	capacity, err := stegvault.Capacity(carrier)
	if err != nil {
		return err
	}
	maxSecret, err := stegvault.MaxSecretSize(carrier)
	if err != nil {
		return err
	}

	fmt.Printf("format:     %s\n", format)
	fmt.Printf("capacity:   %d bytes\n", capacity)
	fmt.Printf("max secret: %d bytes\n", maxSecret)
	return nil
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	in := fs.String("in", "", "carrier image")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("detect requires -in")
	}
	carrier, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	format, err := stegvault.DetectFormat(carrier)
	if err != nil {
		return err
	}
	fmt.Println(format)
	return nil
}

func secretBytes(secret, secretFile string) ([]byte, error) {
	switch {
	case secret != "" && secretFile != "":
		return nil, fmt.Errorf("-secret and -secret-file are mutually exclusive")
	case secretFile != "":
		return os.ReadFile(secretFile)
	case secret != "":
		return []byte(secret), nil
	default:
		return nil, fmt.Errorf("one of -secret or -secret-file is required")
	}
}

// readPassphrase reads the passphrase from the environment or the terminal.
// For backup, the interactive path asks twice to catch typos.
func readPassphrase(confirm bool) (string, error) {
	if v := os.Getenv("STEGVAULT_PASSPHRASE"); v != "" {
		return v, nil
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("passphrase read failed: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("passphrase read failed: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(first), nil
}
