package protocol

// This package implements encoding and decoding of the CmdMessenger protocol
// that we use to talk to microcontrollers over a serial link.
//
// The protocol aims to be
//
// - cheap to parse on an 8 bit microcontroller
// - transparent to any 8 bit payload
// - byte compatible with the CmdMessenger 4 Arduino library
//
// - `Command` - A numbered instruction, sent in either direction. The number
//               is the position of the command in the firmware's enum.
// - `Frame`   - A single command and its arguments on the wire.
// - `Board`   - The widths of the device's native int/long/float/double.
//
// === General Syntax
//
// With the default separators
//
//   ```
//   <id>,<arg1>,<arg2>;
//   ```
//
// - `,` separates fields
// - `;` terminates a frame
// - `/` escapes a `,`, `;`, `/` or NUL that occurs inside a field
// - `<id>` is the decimal text of the command id
// - a command with no arguments is just `<id>;`
//
// The separators are configurable but must match the ones the firmware's
// CmdMessenger instance was constructed with.
//
// === Arguments
//
// Each argument is encoded according to a format token
//
//   ```
//   c   char             1 byte, cannot be a separator
//   b   byte             1 byte, 0-255
//   i   int              board int width, little endian
//   I   unsigned int     board int width, little endian
//   l   long             board long width, little endian
//   L   unsigned long    board long width, little endian
//   f   float            IEEE 754, board float width (4 or 8)
//   d   double           IEEE 754, board double width (4 or 8)
//   s   string           raw bytes
//   ?   bool             1 byte, 0 or 1
//   g   guess            decimal text
//   *   repeat           the previous format for every remaining argument
//   ```
//
// Binary formats are read on the device with `readBinArg<T>()`, guessed
// (text) arguments with `readInt16Arg()`, `readFloatArg()` and friends. Text
// is lossy for floats so binary formats should be preferred.
//
// For example, `sum_two_ints` (id 2) with format `ii` on an Uno sending 4 and 1
//
//   ```
//   > 2,\x04/\x00,\x01/\x00;     NUL is reserved too
//   ```
//
// === Escaping
//
// Binary fields can contain separator bytes, these are prefixed with the
// escape byte. When decoding, an escape followed by a byte that did not need
// escaping is kept as is, both bytes are emitted. CmdMessenger does the same.
//
//   ```
//   > 1,a/,b;        "a,b" as a string
//   ```
//
// === Timeouts
//
// The decoder reads one byte at a time from the transport. A transport read
// that times out is reported as io.EOF. A timeout before any byte of a frame
// is "no message", a timeout in the middle of a frame is ErrIncompleteFrame.
//
// Frames longer than Options.MaxFrameSize are skipped up to their command
// separator and reported as ErrFrameTooLarge.
