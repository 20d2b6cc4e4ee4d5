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
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func NewPids(root string) *pidsController {
	return &pidsController{
		root: filepath.Join(root, string(Pids)),
	}
}

type pidsController struct {
	root string
}

func (p *pidsController) Name() Name {
	return Pids
}

func (p *pidsController) Path(path string) string {
	return filepath.Join(p.root, path)
}

func (p *pidsController) Create(path string, resources *Resources) error {
	if err := mkdirAll(p.root, p.Path(path)); err != nil {
		return err
	}
	return p.Apply(path, resources)
}

func (p *pidsController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.Pids == nil {
		return nil
	}
	if limit := resources.Pids.Limit; limit != nil {
		v := "max"
		if *limit >= 0 {
			v = strconv.FormatInt(*limit, 10)
		}
		return os.WriteFile(
			filepath.Join(p.Path(path), "pids.max"),
			[]byte(v),
			defaultFilePerm,
		)
	}
	return nil
}

func (p *pidsController) Stat(path string, stats *Stats) error {
	current, err := readUint(filepath.Join(p.Path(path), "pids.current"))
	if err != nil {
		return err
	}
	var max uint64
	maxData, err := os.ReadFile(filepath.Join(p.Path(path), "pids.max"))
	if err != nil {
		return err
	}
	if maxS := strings.TrimSpace(string(maxData)); maxS != "max" {
		if max, err = parseUint(maxS, 10, 64); err != nil {
			return err
		}
	}
	stats.Pids = &PidsStat{
		Current: current,
		Max:     max,
	}
	return nil
}
