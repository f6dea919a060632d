package cli

import (
	"regexp"
	"strconv"

	"github.com/spf13/cobra"
)

// recapLine matches "host : ok=N changed=N ..." lines of the PLAY RECAP.
var recapLine = regexp.MustCompile(`(?m)^\s*(\S+)\s+:\s+ok=\d+\s+changed=(\d+)`)

// changedHosts returns hosts whose play recap reports changed tasks, in output order.
func changedHosts(output []byte) []string {
	var hosts []string
	seen := make(map[string]struct{})
	for _, m := range recapLine.FindAllSubmatch(output, -1) {
		changed, err := strconv.Atoi(string(m[2]))
		if err != nil || changed == 0 {
			continue
		}
		host := string(m[1])
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts
}

// newIdempotenceCommand creates the "idempotence" subcommand that re-runs converge and fails on changes.
func newIdempotenceCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "idempotence",
		Short: "Re-run converge and fail when any task reports a change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadScenarioFromCmd(opts, cmd, "idempotence")
			if err != nil {
				return err
			}
			return s.idempotence(cmd.Context())
		},
	}
}
