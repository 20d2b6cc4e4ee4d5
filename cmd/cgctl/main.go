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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	units "github.com/docker/go-units"
	cgroup1 "github.com/groupcontrol/cgroup1"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "cgctl"
	app.Version = "1"
	app.Usage = "cgroup v1 management tool"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug output in the logs",
		},
	}
	app.Commands = []cli.Command{
		newCommand,
		delCommand,
		addCommand,
		psCommand,
		statCommand,
		freezeCommand,
		thawCommand,
	}
	app.Before = func(clix *cli.Context) error {
		if clix.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var newCommand = cli.Command{
	Name:  "new",
	Usage: "create a new cgroup",
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name:  "shares",
			Usage: "cpu shares for the group",
		},
		cli.Int64Flag{
			Name:  "quota",
			Usage: "cfs quota in microseconds",
		},
		cli.Uint64Flag{
			Name:  "period",
			Usage: "cfs period in microseconds",
		},
		cli.StringFlag{
			Name:  "memory",
			Usage: "memory limit, accepts human readable sizes like 64MB",
		},
		cli.Int64Flag{
			Name:  "pids",
			Usage: "pids limit",
		},
		cli.StringFlag{
			Name:  "cpus",
			Usage: "cpuset cpus",
		},
	},
	Action: func(clix *cli.Context) error {
		path := clix.Args().First()
		if path == "" {
			return fmt.Errorf("cgroup path must be provided")
		}
		b := cgroup1.NewBuilder(path).CPUAcct().Freezer()
		if clix.IsSet("shares") || clix.IsSet("quota") || clix.IsSet("period") {
			cb := b.CPU()
			if clix.IsSet("shares") {
				cb.Shares(clix.Uint64("shares"))
			}
			if clix.IsSet("quota") {
				cb.Quota(clix.Int64("quota"))
			}
			if clix.IsSet("period") {
				cb.Period(clix.Uint64("period"))
			}
			b = cb.Done()
		}
		if v := clix.String("memory"); v != "" {
			limit, err := units.RAMInBytes(v)
			if err != nil {
				return err
			}
			b = b.Memory().Limit(limit).Done()
		}
		if clix.IsSet("pids") {
			b = b.Pids().Limit(clix.Int64("pids")).Done()
		}
		if v := clix.String("cpus"); v != "" {
			b = b.CPUSet().CPUs(v).Done()
		}
		_, err := b.Build(cgroup1.Default)
		return err
	},
}

var delCommand = cli.Command{
	Name:  "del",
	Usage: "delete a cgroup",
	Action: func(clix *cli.Context) error {
		control, err := cgroup1.Load(cgroup1.Default, cgroup1.StaticPath(clix.Args().First()))
		if err != nil {
			return err
		}
		return control.Delete()
	},
}

var addCommand = cli.Command{
	Name:  "add",
	Usage: "add a process to an existing cgroup",
	Action: func(clix *cli.Context) error {
		pid, err := strconv.Atoi(clix.Args().Get(1))
		if err != nil {
			return err
		}
		control, err := cgroup1.Load(cgroup1.Default, cgroup1.StaticPath(clix.Args().First()))
		if err != nil {
			return err
		}
		return control.Add(cgroup1.Process{Pid: pid})
	},
}

var psCommand = cli.Command{
	Name:  "ps",
	Usage: "list the processes in a cgroup",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "recursive,r",
			Usage: "include child cgroups",
		},
	},
	Action: func(clix *cli.Context) error {
		control, err := cgroup1.Load(cgroup1.Default, cgroup1.StaticPath(clix.Args().First()))
		if err != nil {
			return err
		}
		processes, err := control.Processes(cgroup1.Freezer, clix.Bool("recursive"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 1, 8, 1, ' ', 0)
		fmt.Fprintln(w, "PID\tNAME")
		for _, p := range processes {
			name := "-"
			if proc, err := process.NewProcess(int32(p.Pid)); err == nil {
				if n, err := proc.Name(); err == nil {
					name = n
				}
			}
			fmt.Fprintf(w, "%d\t%s\n", p.Pid, name)
		}
		return w.Flush()
	},
}

var statCommand = cli.Command{
	Name:  "stat",
	Usage: "dump the stats of a cgroup",
	Action: func(clix *cli.Context) error {
		control, err := cgroup1.Load(cgroup1.Default, cgroup1.StaticPath(clix.Args().First()))
		if err != nil {
			return err
		}
		stats, err := control.Stat(cgroup1.IgnoreNotExist)
		if err != nil {
			return err
		}
		if stats.Memory != nil {
			fmt.Printf("memory usage: %s\n", units.HumanSize(float64(stats.Memory.Usage.Usage)))
		}
		return json.NewEncoder(os.Stdout).Encode(stats)
	},
}

var freezeCommand = cli.Command{
	Name:  "freeze",
	Usage: "freeze all processes in a cgroup",
	Action: func(clix *cli.Context) error {
		control, err := cgroup1.Load(cgroup1.Default, cgroup1.StaticPath(clix.Args().First()))
		if err != nil {
			return err
		}
		return control.Freeze()
	},
}

var thawCommand = cli.Command{
	Name:  "thaw",
	Usage: "thaw all processes in a cgroup",
	Action: func(clix *cli.Context) error {
		control, err := cgroup1.Load(cgroup1.Default, cgroup1.StaticPath(clix.Args().First()))
		if err != nil {
			return err
		}
		return control.Thaw()
	},
}
