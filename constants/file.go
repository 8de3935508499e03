package constants

import "strings"

// PDFMagic is the signature every uploadable document must start with.
const PDFMagic = "%PDF-"

// PDFContentType is sent on the multipart file part.
const PDFContentType = "application/pdf"

// AllowedExtensions holds the file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
