package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/service"
)

// multipartOverhead is the allowance for form fields around an uploaded file.
const multipartOverhead = 1 << 20

// MemeHandler handles meme listing, voting, creation and image upload.
type MemeHandler struct {
	voting     *service.VotingService
	images     *service.ImageService
	forceHTTPS bool
}

// NewMemeHandler creates a new meme handler.
// Parameters:
//   - voting: voting service instance.
//   - images: image upload service instance.
//   - forceHTTPS: build absolute image URLs with https regardless of the request scheme.
//
// Returns:
//   - *MemeHandler: initialized handler.
func NewMemeHandler(voting *service.VotingService, images *service.ImageService, forceHTTPS bool) *MemeHandler {
	return &MemeHandler{
		voting:     voting,
		images:     images,
		forceHTTPS: forceHTTPS,
	}
}

// ListMemes handles GET /api/memes.
func (h *MemeHandler) ListMemes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"memes": h.voting.ListMemes(c.Request.Context()),
	})
}

type voteBody struct {
	VoterAddress string `json:"voterAddress"`
}

// Vote handles POST /api/memes/:id/vote.
func (h *MemeHandler) Vote(c *gin.Context) {
	var body voteBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	view, err := h.voting.CastVote(c.Request.Context(), &service.CastVoteRequest{
		MemeID:       c.Param("id"),
		VoterAddress: body.VoterAddress,
	})
	if err != nil {
		respondError(c, err, errorMessages{
			domain.ErrValidation:       "Voter address is required",
			domain.ErrNotEligible:      "Address not eligible for voting",
			domain.ErrVoteLimitReached: fmt.Sprintf("Vote limit reached (maximum %d votes per address)", h.voting.VoteLimit()),
			domain.ErrNotFound:         "Meme not found",
			domain.ErrAlreadyVoted:     "Already voted for this meme",
			domain.ErrStoreUnavailable: "Failed to save vote",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"meme":    view,
		"message": "Vote recorded successfully",
	})
}

// CreateMeme handles POST /api/memes. The body is either JSON with an
// imageUrl, or multipart form data whose "image" file replaces imageUrl.
func (h *MemeHandler) CreateMeme(c *gin.Context) {
	var req service.CreateMemeRequest
	var uploadedKey string

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.images.MaxBytes()+multipartOverhead)
		if _, err := c.MultipartForm(); err != nil {
			respondUploadError(c, err)
			return
		}

		req.Title = c.PostForm("title")
		req.Description = c.PostForm("description")
		req.CreatorAddress = c.PostForm("creatorAddress")
		req.ImageURL = c.PostForm("imageUrl")

		file, err := c.FormFile("image")
		switch {
		case err == nil:
			key, url, uploadErr := h.storeImage(c, file)
			if uploadErr != nil {
				respondUploadError(c, uploadErr)
				return
			}
			uploadedKey = key
			req.ImageURL = url
		case errors.Is(err, http.ErrMissingFile):
		default:
			respondUploadError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	meme, err := h.voting.CreateMeme(c.Request.Context(), &req)
	if err != nil {
		if uploadedKey != "" {
			h.images.Remove(c.Request.Context(), uploadedKey)
		}
		messages := errorMessages{
			domain.ErrNotEligible:      "Address not eligible for creating memes",
			domain.ErrAlreadyCreated:   "Address has already created a meme. Only one meme per address allowed.",
			domain.ErrStoreUnavailable: "Failed to save meme",
		}
		if errors.Is(err, service.ErrMissingField) {
			messages[domain.ErrValidation] = "All fields are required"
		}
		respondError(c, err, messages)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"meme":    meme,
		"message": "Meme created successfully",
	})
}

// UploadImage handles POST /api/upload-image.
func (h *MemeHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.images.MaxBytes()+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		respondUploadError(c, err)
		return
	}

	key, url, err := h.storeImage(c, file)
	if err != nil {
		respondUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"imageUrl": url,
		"filename": key,
		"message":  "Image uploaded successfully",
	})
}

// storeImage uploads file and returns its storage key and absolute URL.
func (h *MemeHandler) storeImage(c *gin.Context, file *multipart.FileHeader) (string, string, error) {
	if file.Size > h.images.MaxBytes() {
		return "", "", service.ErrImageTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to open upload: %v", domain.ErrValidation, err)
	}
	defer f.Close()

	img, err := h.images.Upload(c.Request.Context(), file.Filename, f)
	if err != nil {
		return "", "", err
	}
	return img.Key, absoluteURL(c, img.URL, h.forceHTTPS), nil
}

func respondUploadError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		err = service.ErrNoImage
	case errors.As(err, &maxErr), errors.Is(err, multipart.ErrMessageTooLarge):
		err = service.ErrImageTooLarge
	case errors.Is(err, http.ErrNotMultipart):
		err = fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	messages := errorMessages{
		domain.ErrStoreUnavailable: "Failed to upload image",
	}
	switch {
	case errors.Is(err, service.ErrNoImage):
		messages[domain.ErrValidation] = "No image file uploaded"
	case errors.Is(err, service.ErrImageTooLarge):
		messages[domain.ErrValidation] = "File too large"
	case errors.Is(err, service.ErrNotAnImage):
		messages[domain.ErrValidation] = "Only image files are allowed!"
	}
	respondError(c, err, messages)
}

// absoluteURL resolves a host-relative URL against the request host.
func absoluteURL(c *gin.Context, u string, forceHTTPS bool) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}

	scheme := "http"
	switch {
	case forceHTTPS, c.Request.TLS != nil:
		scheme = "https"
	case c.GetHeader("X-Forwarded-Proto") != "":
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(c.GetHeader("X-Forwarded-Proto"), ",")[0]))
	}

	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, u)
}
