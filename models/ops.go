package models

import "fmt"

// WriteMode selects how write() combines new content with an existing file.
type WriteMode string

const (
	WriteOverwrite WriteMode = "overwrite"
	WriteAppend    WriteMode = "append"
	WritePrepend   WriteMode = "prepend"
)

func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case WriteOverwrite, WriteAppend, WritePrepend:
		return WriteMode(s), nil
	case "":
		return WriteOverwrite, nil
	default:
		return "", fmt.Errorf("invalid write mode %q", s)
	}
}
