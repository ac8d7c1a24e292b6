package session

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// decodeBody converts known non-UTF-8 bodies to UTF-8 based on the charset
// parameter of the content type. Unknown charsets pass through untouched.
func decodeBody(data []byte, headers http.Header) ([]byte, error) {
	contentType := strings.ToLower(headers.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "charset=gb2312"), strings.Contains(contentType, "charset=gbk"):
		return decodeGBK(data)
	case strings.Contains(contentType, "charset=big5"):
		return decodeBig5(data)
	}
	return data, nil
}

// decodeGBK converts GBK to UTF-8
func decodeGBK(s []byte) ([]byte, error) {
	reader := transform.NewReader(bytes.NewReader(s), simplifiedchinese.GBK.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// decodeBig5 converts BIG5 to UTF-8
func decodeBig5(s []byte) ([]byte, error) {
	reader := transform.NewReader(bytes.NewReader(s), traditionalchinese.Big5.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
