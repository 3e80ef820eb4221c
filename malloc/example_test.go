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

package malloc

import "fmt"

func Example() {
	a, err := New()
	if err != nil {
		panic(err)
	}

	p, _ := a.Malloc(40)
	q, _ := a.Malloc(100)

	fmt.Printf("p size=%d\n", blockFromPayload(p).size())
	fmt.Printf("q size=%d\n", blockFromPayload(q).size())
	fmt.Printf("check=%v\n", a.Check(0))

	a.Free(p)
	a.Free(q)
	fmt.Printf("check after free=%v\n", a.Check(0))

	// Output:
	// p size=48
	// q size=112
	// check=true
	// check after free=true
}
