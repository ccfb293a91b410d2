// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search ranks indexed chunks against a query vector.
//
// The Ranker asks an index.Index for its nearest chunks, drops those whose
// cosine similarity falls below a threshold and returns the rest ordered by
// score, ties broken by chunk ID. A RankMonitor can observe each stage; the
// log monitor backs the CLI's --explain flag.
package search
