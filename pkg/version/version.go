/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package version reports the build version injected at link time:
//
//	go build -ldflags "-X github.com/carverauto/irrigationhub/pkg/version.version=1.2.0 -X github.com/carverauto/irrigationhub/pkg/version.buildID=abc123"
package version

//nolint:gochecknoglobals // set via ldflags
var (
	version = "dev"
	buildID = "dev"
)

// GetVersion returns the release version, "dev" for local builds.
func GetVersion() string {
	return version
}

// GetBuildID returns the build identifier, usually a commit hash.
func GetBuildID() string {
	return buildID
}

// GetFullVersion renders the version and build ID for startup logs.
func GetFullVersion() string {
	if buildID == "" || buildID == version {
		return version
	}

	return version + " (build: " + buildID + ")"
}
