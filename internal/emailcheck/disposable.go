package emailcheck

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// builtinDisposable lists well-known throwaway mailbox providers.
var builtinDisposable = []string{
	"10minutemail.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"sharklasers.com",
	"mailinator.com",
	"tempmail.com",
	"temp-mail.org",
	"throwaway.email",
	"yopmail.com",
	"trashmail.com",
	"getnada.com",
	"maildrop.cc",
	"dispostable.com",
	"fakeinbox.com",
	"mailnesia.com",
	"mintemail.com",
	"emailondeck.com",
	"spamgourmet.com",
}

// Denylist is an immutable set of disposable email domains.
// It is safe for concurrent use once constructed.
type Denylist struct {
	domains map[string]struct{}
}

// NewDenylist builds a denylist from the built-in domains plus extra.
// Entries are trimmed and lowercased; blanks are ignored.
func NewDenylist(extra ...string) *Denylist {
	d := &Denylist{domains: make(map[string]struct{}, len(builtinDisposable)+len(extra))}
	for _, s := range builtinDisposable {
		d.add(s)
	}
	for _, s := range extra {
		d.add(s)
	}
	return d
}

// LoadDenylist returns the built-in denylist extended with the domains in
// path, one per line. Lines starting with '#' are comments. An empty path
// yields the built-in list.
func LoadDenylist(path string) (*Denylist, error) {
	if strings.TrimSpace(path) == "" {
		return NewDenylist(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open disposable domains file: %w", err)
	}
	defer f.Close()

	var extra []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		extra = append(extra, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read disposable domains file: %w", err)
	}
	return NewDenylist(extra...), nil
}

func (d *Denylist) add(s string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s != "" {
		d.domains[s] = struct{}{}
	}
}

// Contains reports whether domain, or any parent of it, is denylisted.
// "mailinator.com" and "eu.mailinator.com" both match an entry for
// "mailinator.com".
func (d *Denylist) Contains(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for domain != "" {
		if _, ok := d.domains[domain]; ok {
			return true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
	}
	return false
}

// Len returns the number of distinct domains in the list.
func (d *Denylist) Len() int { return len(d.domains) }
