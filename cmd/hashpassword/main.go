// Command hashpassword prints a bcrypt hash for ANALYTICS_PASSWORD_HASH.
// The password is read from the first line of stdin:
//
//	echo -n 'secret' | go run ./cmd/hashpassword
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"linkpage-backend/internal/auth"
)

func main() {
	cost := flag.Int("cost", auth.DefaultBcryptCost, "bcrypt cost")
	flag.Parse()

	if err := run(os.Stdin, os.Stdout, *cost); err != nil {
		fmt.Fprintln(os.Stderr, "hashpassword:", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, cost int) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read password: %w", err)
	}

	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"), cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = fmt.Fprintln(out, hash)
	return err
}
