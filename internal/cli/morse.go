// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cli

import "strings"

// morseTable maps the upper-case letters and digits the fault-kind
// names below use to International Morse code.
var morseTable = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
}

// morseEncode renders s as space-separated Morse symbols, one group
// per letter and "/" between words, per the International Morse code
// convention; characters with no mapping (punctuation) pass through
// as-is so the message stays legible even when not fully encodable.
func morseEncode(s string) string {
	var words []string
	for _, word := range strings.Fields(strings.ToUpper(s)) {
		var letters []string
		for _, r := range word {
			if code, ok := morseTable[r]; ok {
				letters = append(letters, code)
			} else {
				letters = append(letters, string(r))
			}
		}
		words = append(words, strings.Join(letters, " "))
	}
	return strings.Join(words, " / ")
}

// faultLog is a small ring buffer of the most recent error kinds
// (spec.md §7) the probe has reported. It backs the `morse` CLI
// command: spec.md's CLI table names the command without specifying
// an encoding, so this package renders the ring as Morse text — see
// the Morse fault code decision in DESIGN.md.
type faultLog struct {
	entries [8]string
	next    int
	filled  bool
}

// Record appends kind to the ring, overwriting the oldest entry once
// full.
func (f *faultLog) Record(kind string) {
	f.entries[f.next] = kind
	f.next = (f.next + 1) % len(f.entries)
	if f.next == 0 {
		f.filled = true
	}
}

// Last returns the recorded kinds, oldest first.
func (f *faultLog) Last() []string {
	if !f.filled {
		return append([]string{}, f.entries[:f.next]...)
	}
	out := make([]string, 0, len(f.entries))
	for i := 0; i < len(f.entries); i++ {
		out = append(out, f.entries[(f.next+i)%len(f.entries)])
	}
	return out
}

// Morse renders the ring's contents as a single Morse-coded line, or
// a plain message when nothing has faulted yet.
func (f *faultLog) Morse() string {
	last := f.Last()
	if len(last) == 0 {
		return "no faults recorded"
	}
	return morseEncode(strings.Join(last, " "))
}
