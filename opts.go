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

// InitConfig provides configuration options for the creation or loading
// of a cgroup and its subsystems
type InitConfig struct {
	// InitCheck can be used to customize how a subsystem's initialization
	// failure is handled
	InitCheck InitCheck
}

func newInitConfig() *InitConfig {
	return &InitConfig{}
}

// InitOpts allows configuration for the creation or loading of a cgroup
type InitOpts func(*InitConfig) error

// InitCheck is an initialization check. It is run for each subsystem
// whose creation failed, with the error that occurred. Returning
// ErrIgnoreSubsystem skips the subsystem silently; returning nil drops
// it without recording a failure; any other error aborts the whole
// operation. Without an InitCheck the failure is collected into the
// operation's *PartialError.
type InitCheck func(Subsystem, Path, error) error

// AllowAny allows any subsystem errors to be skipped
func AllowAny(_ Subsystem, _ Path, _ error) error {
	return ErrIgnoreSubsystem
}

// WithInitCheck sets the InitCheck run on subsystem initialization
// failures
func WithInitCheck(check InitCheck) InitOpts {
	return func(config *InitConfig) error {
		config.InitCheck = check
		return nil
	}
}
