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
)

func NewNetCls(root string) *netclsController {
	return &netclsController{
		root: filepath.Join(root, string(NetCLS)),
	}
}

type netclsController struct {
	root string
}

func (n *netclsController) Name() Name {
	return NetCLS
}

func (n *netclsController) Path(path string) string {
	return filepath.Join(n.root, path)
}

func (n *netclsController) Create(path string, resources *Resources) error {
	if err := mkdirAll(n.root, n.Path(path)); err != nil {
		return err
	}
	return n.Apply(path, resources)
}

func (n *netclsController) Apply(path string, resources *Resources) error {
	if resources == nil || resources.NetCLS == nil {
		return nil
	}
	if resources.NetCLS.ClassID != nil {
		return os.WriteFile(
			filepath.Join(n.Path(path), "net_cls.classid"),
			[]byte(strconv.FormatUint(uint64(*resources.NetCLS.ClassID), 10)),
			defaultFilePerm,
		)
	}
	return nil
}

// ClassID reads net_cls.classid
func (n *netclsController) ClassID(path string) (uint32, error) {
	v, err := readUint(filepath.Join(n.Path(path), "net_cls.classid"))
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
