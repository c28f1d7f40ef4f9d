package dicomweb

// studiesURL builds the URL of the studies resource, or of one study when
// studyUID is set.
func (c *Client) studiesURL(studyUID string) string {
	if studyUID != "" {
		return c.BaseURL + "/studies/" + studyUID
	}
	return c.BaseURL + "/studies"
}

// seriesURL builds the URL of the series resource. A series UID without a
// study UID cannot be addressed hierarchically and is ignored with a warning.
func (c *Client) seriesURL(studyUID, seriesUID string) string {
	if studyUID == "" {
		if seriesUID != "" {
			c.Logger.Warn("series UID is ignored because study UID is undefined", "series", seriesUID)
		}
		return c.BaseURL + "/series"
	}
	url := c.studiesURL(studyUID) + "/series"
	if seriesUID != "" {
		url += "/" + seriesUID
	}
	return url
}

// instancesURL builds the URL of the instances resource, scoped to a study
// or series when their UIDs are set. An instance UID is only honored when
// both study and series UIDs are set.
func (c *Client) instancesURL(studyUID, seriesUID, sopInstanceUID string) string {
	if studyUID == "" || seriesUID == "" {
		if sopInstanceUID != "" {
			c.Logger.Warn("instance UID is ignored because study and/or series UID are undefined", "instance", sopInstanceUID)
		}
		if studyUID != "" {
			return c.studiesURL(studyUID) + "/instances"
		}
		return c.BaseURL + "/instances"
	}
	url := c.seriesURL(studyUID, seriesUID) + "/instances"
	if sopInstanceUID != "" {
		url += "/" + sopInstanceUID
	}
	return url
}
