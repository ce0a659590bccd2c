// Package logtail reads and highlights perch's own log file.
//
// perch runs full screen, so its log goes to a file under the XDG state
// directory instead of the terminal. The `perch logs` command uses this
// package to print the end of that file.
//
// # Reading
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays bounded
// however large the file has grown. A missing file is not an error; it simply
// has no lines yet.
//
// # Formatting
//
// Lines are in zerolog's console format:
//
//	2026-10-17T09:30:00Z INF logged in component=engine user=alice
//
// ColorizeLine styles the timestamp, the three-letter level and the component
// field with Lipgloss. Filter drops lines below a minimum level while keeping
// lines it cannot parse.
package logtail
