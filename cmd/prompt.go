package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var stdin = bufio.NewReader(os.Stdin)

// confirm asks a yes/no question and returns true only on an explicit
// yes.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := stdin.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// promptOption is one selectable answer for choose.
type promptOption struct {
	key  string
	desc string
}

// choose presents single-letter options and returns the selected key.
// An empty line selects def; an unknown answer re-prompts.
func choose(prompt string, options []promptOption, def string) string {
	valid := make(map[string]bool, len(options))
	for _, opt := range options {
		valid[opt.key] = true
	}
	for {
		fmt.Println(prompt)
		for _, opt := range options {
			fmt.Printf("  [%s] %s\n", opt.key, opt.desc)
		}
		fmt.Printf("Choice [%s]: ", def)
		line, err := stdin.ReadString('\n')
		if err != nil {
			return def
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "" {
			return def
		}
		if valid[answer] {
			return answer
		}
		fmt.Println("Unrecognized choice.")
	}
}
