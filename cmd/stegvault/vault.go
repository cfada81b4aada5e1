package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stegvault/stegvault"
	"github.com/stegvault/stegvault/internal/vault"
)

// runVault manages a multi-entry vault stored inside a stego image. The
// vault is a JSON blob handed to the core as an opaque secret; this layer
// never sees salts, nonces, or keys.
func runVault(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stegvault vault <list|get|add|delete|search> [flags]")
	}

	switch args[0] {
	case "list":
		return vaultList(args[1:])
	case "get":
		return vaultGet(args[1:])
	case "add":
		return vaultAdd(args[1:])
	case "delete":
		return vaultDelete(args[1:])
	case "search":
		return vaultSearch(args[1:])
	default:
		return fmt.Errorf("unknown vault command %q", args[0])
	}
}

func loadVault(path, passphrase string, params stegvault.Params) (*vault.Vault, error) {
	carrier, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	blob, err := stegvault.Restore(carrier, passphrase, params)
	if err != nil {
		return nil, err
	}
	return vault.UnmarshalBlob(blob)
}

func saveVault(v *vault.Vault, coverPath, outPath, passphrase string, params stegvault.Params) error {
	blob, err := v.MarshalBlob()
	if err != nil {
		return err
	}
	carrier, err := os.ReadFile(coverPath)
	if err != nil {
		return err
	}
	stegoImg, err := stegvault.Backup(carrier, blob, passphrase, params)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, stegoImg, 0o600)
}

func vaultList(args []string) error {
	fs := flag.NewFlagSet("vault list", flag.ExitOnError)
	in := fs.String("in", "", "stego image holding the vault")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("vault list requires -in")
	}
	passphrase, err := readPassphrase(false)
	if err != nil {
		return err
	}
	v, err := loadVault(*in, passphrase, *params)
	if err != nil {
		return err
	}
	for _, key := range v.Keys() {
		fmt.Println(key)
	}
	return nil
}

func vaultGet(args []string) error {
	fs := flag.NewFlagSet("vault get", flag.ExitOnError)
	in := fs.String("in", "", "stego image holding the vault")
	key := fs.String("key", "", "entry key")
	showPassword := fs.Bool("show-password", false, "print the password instead of masking it")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" || *key == "" {
		return fmt.Errorf("vault get requires -in and -key")
	}
	passphrase, err := readPassphrase(false)
	if err != nil {
		return err
	}
	v, err := loadVault(*in, passphrase, *params)
	if err != nil {
		return err
	}
	entry, ok := v.Get(*key)
	if !ok {
		return fmt.Errorf("no entry %q", *key)
	}
	printEntry(entry, *showPassword)
	return nil
}

func vaultAdd(args []string) error {
	fs := flag.NewFlagSet("vault add", flag.ExitOnError)
	in := fs.String("in", "", "existing stego image, or a fresh cover image with -new")
	out := fs.String("out", "", "output stego image")
	isNew := fs.Bool("new", false, "treat -in as a fresh cover image and create an empty vault")
	key := fs.String("key", "", "entry key")
	password := fs.String("password", "", "entry password")
	username := fs.String("username", "", "optional username")
	url := fs.String("url", "", "optional URL")
	notes := fs.String("notes", "", "optional notes")
	tags := fs.String("tags", "", "optional comma-separated tags")
	totp := fs.String("totp", "", "optional TOTP secret")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" || *out == "" || *key == "" || *password == "" {
		return fmt.Errorf("vault add requires -in, -out, -key and -password")
	}
	passphrase, err := readPassphrase(*isNew)
	if err != nil {
		return err
	}

	var v *vault.Vault
	if *isNew {
		v = vault.New()
	} else {
		if v, err = loadVault(*in, passphrase, *params); err != nil {
			return err
		}
	}

	entry := vault.Entry{
		Key:        *key,
		Password:   *password,
		Username:   *username,
		URL:        *url,
		Notes:      *notes,
		TOTPSecret: *totp,
	}
	if *tags != "" {
		for _, t := range strings.Split(*tags, ",") {
			entry.Tags = append(entry.Tags, strings.TrimSpace(t))
		}
	}
	if err := v.Add(entry); err != nil {
		return err
	}
	if err := saveVault(v, *in, *out, passphrase, *params); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"key": *key, "output": *out}).Info("entry added")
	return nil
}

func vaultDelete(args []string) error {
	fs := flag.NewFlagSet("vault delete", flag.ExitOnError)
	in := fs.String("in", "", "stego image holding the vault")
	out := fs.String("out", "", "output stego image")
	key := fs.String("key", "", "entry key")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" || *out == "" || *key == "" {
		return fmt.Errorf("vault delete requires -in, -out and -key")
	}
	passphrase, err := readPassphrase(false)
	if err != nil {
		return err
	}
	v, err := loadVault(*in, passphrase, *params)
	if err != nil {
		return err
	}
	if !v.Delete(*key) {
		return fmt.Errorf("no entry %q", *key)
	}
	if err := saveVault(v, *in, *out, passphrase, *params); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"key": *key, "output": *out}).Info("entry deleted")
	return nil
}

func vaultSearch(args []string) error {
	fs := flag.NewFlagSet("vault search", flag.ExitOnError)
	in := fs.String("in", "", "stego image holding the vault")
	term := fs.String("term", "", "search term")
	params := kdfFlags(fs)
	fs.Parse(args)

	if *in == "" || *term == "" {
		return fmt.Errorf("vault search requires -in and -term")
	}
	passphrase, err := readPassphrase(false)
	if err != nil {
		return err
	}
	v, err := loadVault(*in, passphrase, *params)
	if err != nil {
		return err
	}
	for _, entry := range v.Search(*term) {
		printEntry(entry, false)
		fmt.Println()
	}
	return nil
}

func printEntry(e vault.Entry, showPassword bool) {
	fmt.Printf("key:      %s\n", e.Key)
	if showPassword {
		fmt.Printf("password: %s\n", e.Password)
	} else {
		fmt.Printf("password: ********\n")
	}
	if e.Username != "" {
		fmt.Printf("username: %s\n", e.Username)
	}
	if e.URL != "" {
		fmt.Printf("url:      %s\n", e.URL)
	}
	if e.Notes != "" {
		fmt.Printf("notes:    %s\n", e.Notes)
	}
	if len(e.Tags) > 0 {
		fmt.Printf("tags:     %s\n", strings.Join(e.Tags, ", "))
	}
	if e.TOTPSecret != "" {
		fmt.Printf("totp:     configured\n")
	}
	fmt.Printf("modified: %s\n", e.ModifiedAt.Format("2006-01-02 15:04:05"))
}
