package storage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const deliveryHost = "res.cloudinary.com"

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
}

// CloudinarySigner signs direct browser uploads of message attachments and
// recognizes the delivery URLs those uploads produce.
type CloudinarySigner struct {
	cloudName string
	apiKey    string
	secret    string
	folder    string
	now       func() time.Time
}

func NewCloudinarySigner(cloudinaryURL, folder string) (*CloudinarySigner, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	if cld.Config.Cloud.APISecret == "" {
		return nil, fmt.Errorf("cloudinary: url carries no api secret")
	}
	return &CloudinarySigner{
		cloudName: cld.Config.Cloud.CloudName,
		apiKey:    cld.Config.Cloud.APIKey,
		secret:    cld.Config.Cloud.APISecret,
		folder:    folder,
		now:       time.Now,
	}, nil
}

func (s *CloudinarySigner) Sign() (*UploadSignature, error) {
	paramsToSign, err := api.StructToParams(uploader.UploadParams{
		Folder: s.folder,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare signature params: %w", err)
	}

	timestamp := s.now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign upload params: %w", err)
	}

	return &UploadSignature{
		Signature: signature,
		Timestamp: timestamp,
		APIKey:    s.apiKey,
		CloudName: s.cloudName,
		Folder:    s.folder,
	}, nil
}

// Allowed reports whether raw is an https delivery URL of this cloud.
func (s *CloudinarySigner) Allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" || !strings.EqualFold(u.Host, deliveryHost) {
		return false
	}
	return strings.HasPrefix(u.Path, "/"+s.cloudName+"/")
}
