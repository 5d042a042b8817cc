package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/me/remotetask/internal/connection"
	"github.com/me/remotetask/pkg/model"
)

// SageMakerAPI is the subset of the SageMaker client the gateway uses.
type SageMakerAPI interface {
	StartPipelineExecution(ctx context.Context, in *sagemaker.StartPipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.StartPipelineExecutionOutput, error)
	DescribePipelineExecution(ctx context.Context, in *sagemaker.DescribePipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribePipelineExecutionOutput, error)
	StopPipelineExecution(ctx context.Context, in *sagemaker.StopPipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.StopPipelineExecutionOutput, error)
}

// stopTokenNamespace seeds the stop request token so every stop of one
// execution carries the same idempotency token.
var stopTokenNamespace = uuid.MustParse("0b9e2d55-8f5f-4d0e-8a3c-6f2f4d7b9e41")

// SageMaker runs jobs as SageMaker pipeline executions. The execution ARN
// is the handle.
type SageMaker struct {
	client SageMakerAPI
	logger *slog.Logger
}

// NewSageMaker creates a gateway over client.
func NewSageMaker(client SageMakerAPI, logger *slog.Logger) *SageMaker {
	return &SageMaker{
		client: client,
		logger: logger.With("component", "sagemaker-gateway"),
	}
}

// NewSageMakerFromConnection creates a gateway authenticated with conn.
func NewSageMakerFromConnection(ctx context.Context, conn model.Connection, logger *slog.Logger) (*SageMaker, error) {
	cfg, err := connection.AWSConfig(ctx, conn)
	if err != nil {
		return nil, err
	}
	client := sagemaker.NewFromConfig(cfg, func(o *sagemaker.Options) {
		if conn.Endpoint != "" {
			o.BaseEndpoint = aws.String(conn.Endpoint)
		}
	})
	return NewSageMaker(client, logger), nil
}

// Submit calls StartPipelineExecution and returns the execution ARN.
func (g *SageMaker) Submit(ctx context.Context, req model.SubmissionRequest) (model.ExecutionHandle, error) {
	if req.MaxConcurrentSteps < 1 || req.MaxConcurrentSteps > model.MaxConcurrentStepsLimit {
		return "", model.Errorf(model.KindInvalidConfiguration,
			"max parallel execution steps %d out of range", req.MaxConcurrentSteps)
	}
	in := &sagemaker.StartPipelineExecutionInput{
		PipelineName:                 aws.String(req.JobName),
		PipelineExecutionDisplayName: aws.String(req.DisplayName),
		PipelineExecutionDescription: aws.String(req.Description),
		ParallelismConfiguration: &types.ParallelismConfiguration{
			MaxParallelExecutionSteps: aws.Int32(int32(req.MaxConcurrentSteps)),
		},
	}
	if req.ClientToken != "" {
		in.ClientRequestToken = aws.String(req.ClientToken)
	}
	for _, p := range req.Parameters {
		in.PipelineParameters = append(in.PipelineParameters, types.Parameter{
			Name:  aws.String(p.Name),
			Value: aws.String(p.Value),
		})
	}

	g.logger.Debug("starting pipeline execution",
		"pipeline", req.JobName,
		"display_name", req.DisplayName,
		"max_parallel_steps", req.MaxConcurrentSteps,
		"parameters", len(req.Parameters),
	)

	out, err := g.client.StartPipelineExecution(ctx, in)
	if err != nil {
		return "", submissionError("start pipeline "+req.JobName, err)
	}
	arn := aws.ToString(out.PipelineExecutionArn)
	if arn == "" {
		return "", submissionError("start pipeline "+req.JobName, errors.New("response has no execution arn"))
	}

	g.logger.Info("pipeline execution started", "pipeline", req.JobName, "handle", arn)
	return model.ExecutionHandle(arn), nil
}

// Inspect calls DescribePipelineExecution.
func (g *SageMaker) Inspect(ctx context.Context, handle model.ExecutionHandle) (model.ExecutionStatus, error) {
	out, err := g.client.DescribePipelineExecution(ctx, &sagemaker.DescribePipelineExecutionInput{
		PipelineExecutionArn: aws.String(handle.String()),
	})
	if err != nil {
		var nf *types.ResourceNotFound
		if errors.As(err, &nf) {
			return model.ExecutionStatus{}, unknownExecution(handle, err)
		}
		return model.ExecutionStatus{}, inspectionError(handle, err)
	}
	return SageMakerVocabulary.Classify(string(out.PipelineExecutionStatus), aws.ToString(out.FailureReason)), nil
}

// Stop calls StopPipelineExecution. A conflict or validation rejection is
// checked against the execution's status: if it already finished, the stop
// is a no-op.
func (g *SageMaker) Stop(ctx context.Context, handle model.ExecutionHandle) error {
	_, err := g.client.StopPipelineExecution(ctx, &sagemaker.StopPipelineExecutionInput{
		PipelineExecutionArn: aws.String(handle.String()),
		ClientRequestToken:   aws.String(uuid.NewSHA1(stopTokenNamespace, []byte(handle)).String()),
	})
	if err == nil {
		g.logger.Info("pipeline execution stop requested", "handle", handle)
		return nil
	}

	var nf *types.ResourceNotFound
	if errors.As(err, &nf) {
		return unknownExecution(handle, err)
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("stop %s: %w", handle, err)
	}
	switch apiErr.ErrorCode() {
	case "ConflictException", "ValidationException":
	default:
		return fmt.Errorf("stop %s: %w", handle, err)
	}

	st, inspectErr := g.Inspect(ctx, handle)
	if inspectErr != nil {
		return fmt.Errorf("stop %s: %w", handle, err)
	}
	if st.IsTerminal() || st.Raw == "Stopping" {
		g.logger.Debug("stop on finished execution ignored", "handle", handle, "status", st.Raw)
		return nil
	}
	return fmt.Errorf("stop %s: %w", handle, err)
}
