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


// Package session implements the question and answer loop over a document
// index.
//
// A Session moves through a fixed set of states:
//
//	Idle -> AwaitingQuestion -> Retrieving -> Generating -> AwaitingQuestion
//	                                                      \-> Terminated
//
// LoadDirectory or LoadDocuments builds the index and leaves Idle. Each Ask
// embeds the question, ranks and assembles context, and asks the generation
// model for an answer. Failures of a single question return the session to
// AwaitingQuestion; only Exit or an exit command terminates it.
package session
