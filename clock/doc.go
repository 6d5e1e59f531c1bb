/*
Copyright (c) Facebook, Inc. and its affiliates.

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

/*
Package clock contains the vocabulary shared by the software clock core.

It defines
  - Timeval, the seconds plus microseconds value used for the wall clock and for
    interval timer values, with normalization that keeps microseconds in [0, 1000000)
  - the adjtimex mode bits understood by the drift control loop
  - conversions between timex scaled PPM and PPB
  - the error taxonomy every other package wraps.
*/
package clock
