// Package at кодек AT протокола Hands-Free: разбиение потока на строки, разбор ответов
// AG и построение команд HF.
package at

import "bytes"

// ScanLines bufio.SplitFunc для потока AG: строки разделяются CR, LF или их комбинацией,
// пустые строки пропускаются.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && isEOL(data[start]) {
		start++
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF && start < len(data) {
		return len(data), data[start:], nil
	}
	// только разделители: пропускаем их, чтобы не копить
	return start, nil, nil
}

func isEOL(b byte) bool {
	return b == '\r' || b == '\n'
}
