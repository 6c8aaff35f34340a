// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sgp30

import "strconv"

// DataCorruptionError is returned when the CRC8 of a response word does not
// match.
type DataCorruptionError struct {
	// Word is the index of the first corrupt word in the response.
	Word int
}

func (e *DataCorruptionError) Error() string {
	return "sgp30: data is corrupt, CRC8 mismatch on word " + strconv.Itoa(e.Word)
}
