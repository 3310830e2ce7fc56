package metrics

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	appconfig "fundingwatch/config"
	"fundingwatch/logger"
)

// cloudWatchAPI is the part of the CloudWatch client used for publishing.
type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch publishes run summaries as custom metrics.
type CloudWatch struct {
	client    cloudWatchAPI
	namespace string
	app       string
}

// InitCloudWatch builds the CloudWatch client using the provided region and
// namespace. When the AWS configuration cannot be loaded the function logs a
// warning and returns nil, leaving publishing disabled.
func InitCloudWatch(ctx context.Context, cfg appconfig.CloudWatchConfig, app string) *CloudWatch {
	log := logger.GetLogger().WithComponent("cloudwatch")

	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return nil
	}

	cw := newCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace, app)
	log.WithFields(logger.Fields{
		"region":    awsCfg.Region,
		"namespace": cw.namespace,
	}).Info("initialized CloudWatch client")
	return cw
}

func newCloudWatch(client cloudWatchAPI, namespace, app string) *CloudWatch {
	if namespace == "" {
		namespace = "FundingWatch"
	}
	return &CloudWatch{client: client, namespace: namespace, app: app}
}

// PublishSummary sends one datum per counter of s.
func (c *CloudWatch) PublishSummary(ctx context.Context, s Summary) {
	if c == nil || c.client == nil {
		return
	}
	dims := []cwtypes.Dimension{{Name: aws.String("app"), Value: aws.String(c.app)}}
	datum := func(name string, value float64, unit cwtypes.StandardUnit) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Unit:       unit,
			Value:      aws.Float64(value),
		}
	}

	data := []cwtypes.MetricDatum{
		datum("TargetsChecked", float64(s.Checked), cwtypes.StandardUnitCount),
		datum("PollFailures", float64(s.Failed), cwtypes.StandardUnitCount),
		datum("AlertsQueued", float64(s.Alerts), cwtypes.StandardUnitCount),
		datum("AlertsDelivered", float64(s.Delivered), cwtypes.StandardUnitCount),
		datum("RunDuration", s.Duration.Seconds(), cwtypes.StandardUnitSeconds),
	}
	c.publishMetrics(ctx, data)
}

func (c *CloudWatch) publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	log := logger.GetLogger().WithComponent("cloudwatch")
	if len(data) == 0 {
		log.Debug("no metric data to publish")
		return
	}

	if _, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, d := range data {
		if d.MetricName != nil {
			names = append(names, *d.MetricName)
		}
	}
	log.WithFields(logger.Fields{"metrics": strings.Join(names, ",")}).Debug("published metrics to CloudWatch")
}
