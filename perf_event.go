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

import "path/filepath"

func NewPerfEvent(root string) *perfEventController {
	return &perfEventController{
		root: filepath.Join(root, string(PerfEvent)),
	}
}

type perfEventController struct {
	root string
}

func (p *perfEventController) Name() Name {
	return PerfEvent
}

func (p *perfEventController) Path(path string) string {
	return filepath.Join(p.root, path)
}

func (p *perfEventController) Create(path string, _ *Resources) error {
	return mkdirAll(p.root, p.Path(path))
}
