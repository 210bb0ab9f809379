package security

import (
	"regexp"
	"strings"
)

// CommandResult is the outcome of IsBlockedCommand.
type CommandResult struct {
	Blocked bool
	Reason  string
}

// defaultDenyPatterns blocks the commands enumerated by the spec plus the
// broader categories the teacher's shell tool denies: destructive
// filesystem ops, privilege escalation, exfiltration/reverse-shell
// patterns, and force-pushes to protected branches.
var defaultDenyPatterns = []*regexp.Regexp{
	// rm -rf (or -fr, or split -r -f) against a dangerous target.
	regexp.MustCompile(`\brm\s+(-[a-z]*[rf][a-z]*[rf]?[a-z]*|--recursive|--force)\s+.*(/|~|\*|/\*)(\s|$)`),
	regexp.MustCompile(`\brm\s+-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*\s+.*(/|~|\*|/\*)(\s|$)`),
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\b(shutdown|reboot|halt)\b`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\bchmod\s+777\b`),
	regexp.MustCompile(`\bgit\s+push\s+(--force|-f)\b[^|&;]*\b(main|master|refs/heads/(main|master))\b`),
	// exfiltration / reverse shells
	regexp.MustCompile(`curl[^|&;]*\|\s*(sh|bash)\b`),
	regexp.MustCompile(`wget[^|&;]*\|\s*(sh|bash)\b`),
	regexp.MustCompile(`\bnc\s+-e\b`),
	regexp.MustCompile(`/dev/tcp/`),
	regexp.MustCompile(`\bbash\s+-i\b.*>&`),
	// privesc / persistence / container escape
	regexp.MustCompile(`\bLD_PRELOAD=`),
	regexp.MustCompile(`/var/run/docker\.sock`),
	regexp.MustCompile(`\bcrontab\s+-`),
	regexp.MustCompile(`\b(kill|pkill)\s+-9\s+1\b`),
	// env dumping
	regexp.MustCompile(`^\s*(env|printenv)\s*$`),
}

// IsBlockedCommand lowercases and whitespace-collapses cmd, then checks it
// against the default deny patterns plus any caller-supplied extras.
func IsBlockedCommand(cmd string, extraPatterns []*regexp.Regexp) CommandResult {
	normalized := strings.ToLower(strings.Join(strings.Fields(cmd), " "))

	for _, p := range defaultDenyPatterns {
		if p.MatchString(normalized) {
			return CommandResult{Blocked: true, Reason: "command matches blocked pattern: " + p.String()}
		}
	}
	for _, p := range extraPatterns {
		if p.MatchString(normalized) {
			return CommandResult{Blocked: true, Reason: "command matches caller-supplied blocked pattern"}
		}
	}
	return CommandResult{Blocked: false}
}
