package parser

import (
	"fmt"
	"regexp"
	"strings"

	"support-flow/pkg/types"
)

// sendPattern matches: <amount> to <recipient-id>
// Examples: "3 to creator-a", "0.50 to studio.birds"
var sendPattern = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s+to\s+(\S+)$`)

// ParseSendCommand parses a natural language support command
// Examples:
//   - "3.00 to creator-a"
//   - "send 0.50 to studio.birds"
func ParseSendCommand(command string) (*types.SupportParams, error) {
	// Remove the word "send" if present at the beginning
	command = strings.TrimSpace(command)
	command = regexp.MustCompile(`(?i)^send\s+`).ReplaceAllString(command, "")

	matches := sendPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid send command format. Expected: 'send <amount> to <recipient>' (e.g., 'send 3.00 to creator-a')")
	}

	amount, err := types.ParseAmount(matches[1])
	if err != nil {
		return nil, err
	}

	return &types.SupportParams{
		Allocations: []types.Allocation{
			{RecipientID: matches[2], Amount: amount},
		},
	}, nil
}
