package telebox

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// fingerprintCap limits the fingerprint to the first 10 MiB of a file. The
// server uses it for content dedup, not integrity, so the tail is never read.
const fingerprintCap = 10 * 1024 * 1024

// Fingerprint returns the dedup fingerprint (MD5 over at most the first
// 10 MiB) and the exact size of the file at path.
func Fingerprint(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", 0, err
	}

	hash := md5.New()
	if _, err := io.Copy(hash, io.LimitReader(file, fingerprintCap)); err != nil {
		return "", 0, err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), info.Size(), nil
}
