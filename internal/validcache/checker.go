// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package validcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// CommandChecker shells out to an external format validator (by default
// rio cogeo) and returns its combined output verbatim. The validator
// reads raster headers over HTTP byte ranges; the asset is addressed
// through GDAL's /vsicurl/ virtual filesystem.
type CommandChecker struct {
	// Command is the validator argv prefix; the /vsicurl/ asset URL is
	// appended as the final argument.
	Command []string
}

var _ Checker = (*CommandChecker)(nil)

// NewCommandChecker returns a checker for the given validator command.
// An empty command selects the default "rio cogeo validate".
func NewCommandChecker(command []string) *CommandChecker {
	if len(command) == 0 {
		command = []string{"rio", "cogeo", "validate"}
	}
	return &CommandChecker{Command: command}
}

// Check runs the validator against one asset URL. A non-zero exit is
// not an error here: the validator reports unreadable files through its
// output, and classification happens on the literal text either way.
func (c *CommandChecker) Check(ctx context.Context, identifier string) (string, error) {
	args := append(append([]string{}, c.Command[1:]...), "/vsicurl/"+identifier)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), nil
		}
		return "", fmt.Errorf("run validator %s: %w", c.Command[0], err)
	}
	return out.String(), nil
}
