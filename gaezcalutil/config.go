/*
Copyright © 2025 the GAEZcal authors.
This file is part of GAEZcal.

GAEZcal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GAEZcal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GAEZcal.  If not, see <http://www.gnu.org/licenses/>.
*/

package gaezcalutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"

	"github.com/cropmodel/gaezcal"
)

// Version is the release version of GAEZcal.
const Version = "0.1.0"

// RunConfig builds the pipeline run configuration from the current
// configuration state.
func RunConfig(cfg *viper.Viper) (gaezcal.RunConfig, error) {
	c := gaezcal.RunConfig{
		CropMappingFile:    os.ExpandEnv(cfg.GetString("CropMappingFile")),
		CalorieMappingFile: os.ExpandEnv(cfg.GetString("CalorieMappingFile")),
		OutputDir:          os.ExpandEnv(cfg.GetString("OutputDir")),
		CacheDir:           os.ExpandEnv(cfg.GetString("CacheDir")),
		Workers:            cfg.GetInt("Workers"),
		Overwrite:          cfg.GetBool("Overwrite"),
	}
	slices := make(map[string][]string)
	for _, key := range []string{"YieldVariables", "WaterCodes", "Scenarios",
		"HistoricalPeriods", "HistoricalModels", "FuturePeriods", "FutureModels"} {
		s, err := cast.ToStringSliceE(cfg.Get(key))
		if err != nil {
			return c, fmt.Errorf("gaezcal: reading %s: %v", key, err)
		}
		slices[key] = s
	}
	c.YieldVariables = slices["YieldVariables"]
	c.WaterCodes = slices["WaterCodes"]

	historical := gaezcal.ScenarioConfig{
		Periods: slices["HistoricalPeriods"],
		Models:  slices["HistoricalModels"],
	}
	future := gaezcal.ScenarioConfig{
		Periods: slices["FuturePeriods"],
		Models:  slices["FutureModels"],
	}
	c.Scenarios = make(map[string]gaezcal.ScenarioConfig)
	for _, scenario := range slices["Scenarios"] {
		if scenario == "HIST" {
			c.Scenarios[scenario] = historical
		} else {
			c.Scenarios[scenario] = future
		}
	}
	return c, nil
}

// NewPipeline creates a pipeline from the current configuration state.
func NewPipeline(ctx context.Context) (*gaezcal.Pipeline, error) {
	log, err := Log()
	if err != nil {
		return nil, err
	}
	cfg, err := RunConfig(Cfg)
	if err != nil {
		return nil, err
	}
	bucket, err := OpenBucket(ctx, os.ExpandEnv(Cfg.GetString("BucketURL")))
	if err != nil {
		return nil, err
	}
	return gaezcal.NewPipeline(cfg, bucket, log), nil
}

// OpenBucket returns the blob storage bucket specified by bucketURL,
// in the format 'provider://name/prefix' where provider is the name of
// the storage provider and name is the name of the bucket. The
// accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for
// AWS S3.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("gaezcal: parsing bucket URL: %v", err)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var bucket *blob.Bucket
	switch u.Scheme {
	case "file":
		bucket, err = fileblob.OpenBucket(u.Host+u.Path, nil)
		prefix = ""
	case "gs":
		bucket, err = gsBucket(ctx, u.Host)
	case "s3":
		bucket, err = s3Bucket(ctx, u.Host)
	default:
		return nil, fmt.Errorf("gaezcal: invalid bucket provider %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	return bucket, nil
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s := session.Must(session.NewSession(c))
	return s3blob.OpenBucket(ctx, s, name, nil)
}
