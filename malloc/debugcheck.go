/*
 * Copyright 2024 CloudWeGo Authors
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

//go:build mallocdebug

package malloc

import "github.com/segalloc/segalloc/internal/invariant"

// debugCheck runs the full consistency checker after every public
// operation. It is compiled in only under the mallocdebug build tag so
// the hot path never pays for it by default.
func (a *Allocator) debugCheck(lineHint int) {
	if !a.Check(lineHint) {
		invariant.Fail(lineHint)
	}
}
