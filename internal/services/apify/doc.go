// Package apify submits transcript-extraction runs to an Apify actor and
// polls them to completion.
//
// A run moves through pending and running into exactly one terminal status
// (succeeded, failed, or timed_out). On success the transcript and scraped
// video metadata are read from the run's default dataset; an empty dataset
// means the video has no captions to extract.
package apify
