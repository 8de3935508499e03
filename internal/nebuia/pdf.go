package nebuia

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
)

// CheckPDF verifies path is a readable regular file starting with the PDF
// signature. With strict set it also runs a structural validation and returns
// the page count; otherwise pages is 0.
func CheckPDF(path string, strict bool) (pages int, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, common.Validation(common.CodeFileNotFound, path, common.ErrFileNotFound)
		}
		return 0, common.Validation(common.CodeFileNotFound, path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, common.Validation(common.CodeFileNotFound, path+" is not a regular file", common.ErrFileNotFound)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, common.Validation(common.CodeFileNotFound, path, err)
	}
	head := make([]byte, len(constants.PDFMagic))
	_, err = io.ReadFull(f, head)
	_ = f.Close()
	if err != nil || !bytes.Equal(head, []byte(constants.PDFMagic)) {
		return 0, common.Validation(common.CodeNotPDF, path, common.ErrNotPDF)
	}

	if !strict {
		return 0, nil
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, common.Validation(common.CodeNotPDF, "invalid PDF structure: "+path, errors.Join(common.ErrNotPDF, err))
	}
	pages, err = api.PageCountFile(path)
	if err != nil {
		return 0, common.Validation(common.CodeNotPDF, "count pages: "+path, errors.Join(common.ErrNotPDF, err))
	}
	return pages, nil
}
