package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/coord"
)

// addressEndpoint is the road-name address search service behind the
// portal.
const addressEndpoint = "/addrlink/addrLinkApi.do"

// portalAddressBody is the portal's response shape. Every field comes
// back as a string, coordinates included.
type portalAddressBody struct {
	Results struct {
		Common struct {
			TotalCount   string `json:"totalCount"`
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"common"`
		Juso []struct {
			RoadAddr  string `json:"roadAddr"`
			JibunAddr string `json:"jibunAddr"`
			ZipNo     string `json:"zipNo"`
			BdNm      string `json:"bdNm"`
			EntX      string `json:"entX"`
			EntY      string `json:"entY"`
		} `json:"juso"`
	} `json:"results"`
}

// addressResult is one search hit in the gateway's shape.
type addressResult struct {
	RoadAddress  string       `json:"roadAddress"`
	JibunAddress string       `json:"jibunAddress"`
	ZipCode      string       `json:"zipCode"`
	BuildingName string       `json:"buildingName,omitempty"`
	Point        *coord.Point `json:"point,omitempty"`
	System       coord.Code   `json:"system,omitempty"`
}

type pagination struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalCount  int `json:"totalCount"`
	TotalPages  int `json:"totalPages"`
}

type addressData struct {
	Results    []addressResult `json:"results"`
	Pagination pagination      `json:"pagination"`
}

// handleAddress searches road-name addresses through the portal and
// optionally converts result coordinates. Portal coordinates arrive in
// the UTM-K grid.
func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	keyword := strings.TrimSpace(q.Get("keyword"))
	if len([]rune(keyword)) < 2 {
		s.respondError(w, apierr.New(apierr.CodeValidation,
			"'keyword' must be at least 2 characters"))
		return
	}

	pageNo, err := parseIntParam(q.Get("pageNo"), "pageNo", 1)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if pageNo < 1 {
		s.respondError(w, apierr.New(apierr.CodeValidation, "'pageNo' must be at least 1"))
		return
	}

	numOfRows, err := parseIntParam(q.Get("numOfRows"), "numOfRows", 10)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if numOfRows < 1 || numOfRows > 100 {
		s.respondError(w, apierr.New(apierr.CodeValidation,
			"'numOfRows' must be between 1 and 100"))
		return
	}

	convert := q.Get("convertCoordinate") == "true"
	target := coord.Code(q.Get("targetSystem"))
	if target == "" {
		target = coord.WGS84
	}
	if convert {
		if _, err := coord.Lookup(target); err != nil {
			s.respondError(w, err)
			return
		}
	}

	resp, err := s.upstream.GetCached(r.Context(), cache.TypeAddress, addressEndpoint, map[string]string{
		"keyword":     keyword,
		"currentPage": strconv.Itoa(pageNo),
		"countPerRow": strconv.Itoa(numOfRows),
		"resultType":  "json",
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	var body portalAddressBody
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		s.respondError(w, apierr.Wrap(apierr.CodeExternalAPI,
			"portal returned an unparseable address response", err))
		return
	}
	if code := body.Results.Common.ErrorCode; code != "" && code != "0" {
		s.respondError(w, apierr.Newf(apierr.CodeExternalAPI,
			"portal rejected the address search: %s", body.Results.Common.ErrorMessage).
			WithDetail("portalErrorCode", code))
		return
	}

	results := make([]addressResult, 0, len(body.Results.Juso))
	for _, j := range body.Results.Juso {
		item := addressResult{
			RoadAddress:  j.RoadAddr,
			JibunAddress: j.JibunAddr,
			ZipCode:      j.ZipNo,
			BuildingName: j.BdNm,
		}
		if convert {
			if p, ok := s.convertEntrance(j.EntX, j.EntY, target); ok {
				item.Point = p
				item.System = target
			}
		}
		results = append(results, item)
	}

	totalCount, _ := strconv.Atoi(body.Results.Common.TotalCount)
	totalPages := 0
	if numOfRows > 0 {
		totalPages = (totalCount + numOfRows - 1) / numOfRows
	}

	setCacheHeader(w, cache.TypeAddress)
	elapsed := time.Since(start)
	s.respond(w, http.StatusOK, addressData{
		Results: results,
		Pagination: pagination{
			CurrentPage: pageNo,
			PageSize:    numOfRows,
			TotalCount:  totalCount,
			TotalPages:  totalPages,
		},
	}, meta(boolPtr(resp.Cached), &elapsed))
}

// convertEntrance converts an entrance coordinate pair from the portal
// grid. Rows without coordinates are passed through unconverted.
func (s *Server) convertEntrance(rawX, rawY string, target coord.Code) (*coord.Point, bool) {
	x, errX := strconv.ParseFloat(rawX, 64)
	y, errY := strconv.ParseFloat(rawY, 64)
	if errX != nil || errY != nil {
		return nil, false
	}

	p, err := s.engine.Transform(coord.Point{X: x, Y: y}, coord.UTMK, target)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Entrance coordinate conversion failed")
		return nil, false
	}
	return &p, true
}

func parseIntParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Newf(apierr.CodeValidation,
			"query parameter '%s' is not an integer", name).
			WithDetail(name, raw)
	}
	return v, nil
}
