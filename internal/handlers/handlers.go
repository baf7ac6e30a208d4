package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aidetect-api/internal/imaging"
	"github.com/Brownie44l1/aidetect-api/internal/model"
)

const (
	// ImageField is the multipart field carrying the upload.
	ImageField = "image"

	livenessMessage = "Hello, if you get this message, it means this service is running."

	// formOverhead leaves room for multipart headers on top of the file itself.
	formOverhead = 1 << 20
)

// Classifier is the part of model.Predictor the handlers need.
type Classifier interface {
	Predict(t *imaging.Tensor) (model.Prediction, error)
}

type Handler struct {
	classifier    Classifier
	decoder       *imaging.Decoder
	maxUploadSize int64
	log           *zap.Logger
}

func NewHandler(classifier Classifier, decoder *imaging.Decoder, maxUploadSize int64, log *zap.Logger) *Handler {
	return &Handler{
		classifier:    classifier,
		decoder:       decoder,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

func (h *Handler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": livenessMessage})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Classes:    model.Labels,
		InputShape: imaging.Shape[:],
	})
}

// Predict handles a multipart upload in field "image" and returns the
// predicted class. prediction_time covers the forward pass only.
func (h *Handler) Predict(c *gin.Context) {
	log := h.log.With(zap.String("request_id", c.GetString(RequestIDKey)))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+formOverhead)

	header, err := c.FormFile(ImageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large"})
		case h.hasEmptyFilename(c):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No selected file"})
		default:
			log.Debug("No file part", zap.Error(err))
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No file part"})
		}
		return
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No selected file"})
		return
	}
	if header.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large"})
		return
	}

	log.Info("Received file", zap.String("filename", header.Filename), zap.Int64("size", header.Size))

	file, err := header.Open()
	if err != nil {
		log.Error("Failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("Failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read upload"})
		return
	}

	img, err := h.decoder.Decode(data)
	if err != nil {
		var decErr *imaging.DecodeError
		if errors.As(err, &decErr) {
			log.Info("Rejected upload", zap.String("filename", header.Filename), zap.String("reason", decErr.Reason))
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unable to read the image", Details: decErr.Error()})
			return
		}
		log.Error("Unexpected decode failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Unable to read the image"})
		return
	}

	log.Debug("Decoded image",
		zap.String("format", img.Format),
		zap.String("mime", img.MIME),
		zap.Int("width", img.Width()),
		zap.Int("height", img.Height()))

	tensor := imaging.ToTensor(img)

	start := time.Now()
	result, err := h.classifier.Predict(tensor)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("Prediction error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Prediction failed"})
		return
	}

	log.Info("Prediction",
		zap.String("class", string(result.Class)),
		zap.Float64("probability", result.Probability),
		zap.Duration("elapsed", elapsed))

	c.JSON(http.StatusOK, PredictionResponse{
		PredictedClass: result.Class,
		Probability:    result.Probability,
		PredictionTime: elapsed.Seconds(),
	})
}

// hasEmptyFilename reports a part named "image" sent without a filename.
// mime/multipart stores such parts as plain values, not files.
func (h *Handler) hasEmptyFilename(c *gin.Context) bool {
	form := c.Request.MultipartForm
	return form != nil && len(form.Value[ImageField]) > 0
}
