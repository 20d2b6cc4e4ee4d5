/*
   Copyright The groupcontrol Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package cgroup1

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func NewNetPrio(root string) *netprioController {
	return &netprioController{
		root: filepath.Join(root, string(NetPrio)),
	}
}

type netprioController struct {
	root string
}

func (n *netprioController) Name() Name {
	return NetPrio
}

func (n *netprioController) Path(path string) string {
	return filepath.Join(n.root, path)
}

func (n *netprioController) Create(path string, resources *Resources) error {
	if err := mkdirAll(n.root, n.Path(path)); err != nil {
		return err
	}
	return n.Apply(path, resources)
}

// Apply writes one "interface priority" entry per line to
// net_prio.ifpriomap, preserving slice order
func (n *netprioController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.NetPrio == nil {
		return nil
	}
	for _, prio := range resources.NetPrio.IfPrioMap {
		if err := os.WriteFile(
			filepath.Join(n.Path(path), "net_prio.ifpriomap"),
			[]byte(prio.String()),
			defaultFilePerm,
		); err != nil {
			return err
		}
	}
	return nil
}

// IfPrioMap reads and parses the current contents of net_prio.ifpriomap
func (n *netprioController) IfPrioMap(path string) ([]IfPrioMap, error) {
	f, err := os.Open(filepath.Join(n.Path(path), "net_prio.ifpriomap"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []IfPrioMap
	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q is not an ifpriomap entry", ErrInvalidFormat, s.Text())
		}
		prio, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a priority", ErrInvalidFormat, fields[1])
		}
		out = append(out, IfPrioMap{
			Interface: fields[0],
			Priority:  uint32(prio),
		})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
