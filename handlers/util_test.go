package handlers_test

import (
	"encoding/base64"
	"net/url"
	"strconv"
)

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func base64Std(raw []byte) string { return base64.StdEncoding.EncodeToString(raw) }

func queryEscape(s string) string { return url.QueryEscape(s) }
